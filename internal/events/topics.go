package events

// Topic constants for domain events emitted by the CRM core.
const (
	TopicLeadCreated   = "lead.created"
	TopicSaleRecorded  = "sale.recorded"
	TopicSalePaid      = "sale.paid"
	TopicShiftRecorded = "shift.recorded"
	TopicShiftPaid     = "shift.paid"
)

// DefaultTopics returns the canonical list of topics that support notifications.
func DefaultTopics() []string {
	return []string{
		TopicLeadCreated,
		TopicSaleRecorded,
		TopicSalePaid,
		TopicShiftRecorded,
		TopicShiftPaid,
	}
}
