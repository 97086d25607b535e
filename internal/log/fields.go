package log

// Common field names for structured logging.
const (
	FieldComponent     = "component"
	FieldRequestID     = "request_id"
	FieldClientIP      = "client_ip"
	FieldMethod        = "method"
	FieldPath          = "path"
	FieldStatusCode    = "status_code"
	FieldDuration      = "duration_ms"
	FieldError         = "error"
	FieldOperation     = "operation"
	FieldTransactionID = "transaction_id"
	FieldCustomerID    = "customer_id"
	FieldCustomerName  = "customer_name"
	FieldEntryType     = "entry_type"
	FieldAmountCents   = "amount_cents"
	FieldBalanceCents  = "balance_cents"
	FieldYear          = "year"
	FieldMonth         = "month"
	FieldBackend       = "backend"
)

// Standard component names.
const (
	ComponentApp     = "app"
	ComponentHTTP    = "http"
	ComponentLedger  = "ledger"
	ComponentStore   = "store"
	ComponentAMQP    = "amqp"
	ComponentWorker  = "worker"
	ComponentMirror  = "mirror"
	ComponentReport  = "report"
	ComponentBackend = "backend"
)

// Standard operation names.
const (
	OpCreate    = "create"
	OpRead      = "read"
	OpUpdate    = "update"
	OpDelete    = "delete"
	OpList      = "list"
	OpProject   = "project"
	OpEnrich    = "enrich"
	OpReconcile = "reconcile"
	OpExport    = "export"
	OpStartup   = "startup"
	OpShutdown  = "shutdown"
)
