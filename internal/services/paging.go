package services

// Paging clamps caller supplied page parameters.
type Paging struct {
	Default int
	Max     int
}

func (p Paging) bounds(page, perPage int) (int, int, int64) {
	if page < 1 {
		page = 1
	}
	if perPage <= 0 {
		perPage = p.Default
	}
	if p.Max > 0 && perPage > p.Max {
		perPage = p.Max
	}
	return page, perPage, int64((page - 1) * perPage)
}
