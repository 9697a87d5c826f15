package services

import (
	"github.com/qmuntal/stateless"

	"opalpixel/invoicing/internal/models"
)

const (
	triggerPay    = "pay"
	triggerModify = "modify"
)

// newStatusMachine describes the invoice lifecycle. Paid is terminal. Overdue
// is accepted when stored but never assigned here.
func newStatusMachine(status models.InvoiceStatus) *stateless.StateMachine {
	machine := stateless.NewStateMachine(status)

	machine.Configure(models.InvoiceStatusPending).
		Permit(triggerPay, models.InvoiceStatusPaid).
		PermitReentry(triggerModify)

	machine.Configure(models.InvoiceStatusOverdue).
		Permit(triggerPay, models.InvoiceStatusPaid).
		PermitReentry(triggerModify)

	machine.Configure(models.InvoiceStatusPaid)

	return machine
}

func canPay(status models.InvoiceStatus) bool {
	ok, err := newStatusMachine(status).CanFire(triggerPay)
	return err == nil && ok
}

// canModify covers both edit and delete.
func canModify(status models.InvoiceStatus) bool {
	ok, err := newStatusMachine(status).CanFire(triggerModify)
	return err == nil && ok
}
