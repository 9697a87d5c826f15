package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"opalpixel/invoicing/internal/api/middleware"
	"opalpixel/invoicing/internal/models"
)

const dateLayout = "2006-01-02"

// identity returns the caller, or writes 401 and reports false.
func identity(c *gin.Context) (models.Identity, bool) {
	id, ok := middleware.IdentityFrom(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
	}
	return id, ok
}

// pathID parses the :id path parameter.
func pathID(c *gin.Context) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		badRequest(c, "Invalid ID format")
		return primitive.NilObjectID, false
	}
	return id, true
}

// listParams holds the query parameters shared by list endpoints.
type listParams struct {
	Page     int
	PerPage  int
	UserID   *primitive.ObjectID
	DateFrom *time.Time
	DateTo   *time.Time
}

func parseListParams(c *gin.Context) (listParams, error) {
	var p listParams
	var err error
	if p.Page, err = queryInt(c, "page"); err != nil {
		return p, err
	}
	if p.PerPage, err = queryInt(c, "per_page"); err != nil {
		return p, err
	}
	if v := strings.TrimSpace(c.Query("user_id")); v != "" {
		id, err := primitive.ObjectIDFromHex(v)
		if err != nil {
			return p, fmt.Errorf("invalid user_id %q", v)
		}
		p.UserID = &id
	}
	if p.DateFrom, err = queryDate(c, "date_from"); err != nil {
		return p, err
	}
	if p.DateTo, err = queryDate(c, "date_to"); err != nil {
		return p, err
	}
	if p.DateTo != nil {
		// Inclusive of the whole day.
		end := p.DateTo.Add(24*time.Hour - time.Nanosecond)
		p.DateTo = &end
	}
	return p, nil
}

func queryInt(c *gin.Context, key string) (int, error) {
	v := strings.TrimSpace(c.Query(key))
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", key, v)
	}
	return n, nil
}

func queryDate(c *gin.Context, key string) (*time.Time, error) {
	v := strings.TrimSpace(c.Query(key))
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, v)
	if err != nil {
		return nil, fmt.Errorf("invalid %s %q, expected YYYY-MM-DD", key, v)
	}
	return &t, nil
}
