package enums

// PaymentStatus is settled outside the platform; orders start pending and a
// supplier marks them paid on delivery.
type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusFailed   PaymentStatus = "failed"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

var paymentStatuses = newValueSet("payment status",
	PaymentStatusPending, PaymentStatusPaid, PaymentStatusFailed, PaymentStatusRefunded)

func (p PaymentStatus) String() string { return string(p) }
func (p PaymentStatus) IsValid() bool  { return paymentStatuses.contains(p) }

func ParsePaymentStatus(value string) (PaymentStatus, error) { return paymentStatuses.parse(value) }
