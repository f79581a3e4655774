package metrics

const (
	MetricNameQueueDelivered = "fieldsync_queue_delivered_total"
	MetricNameQueueFailures  = "fieldsync_queue_failures_total"
	MetricNameQueueDepth     = "fieldsync_queue_depth"
	MetricNameDrainDuration  = "fieldsync_drain_duration_seconds"
	MetricNameOnline         = "fieldsync_online"
	MetricNameSyncStatus     = "fieldsync_sync_status"
	MetricNameMediaBytes     = "fieldsync_media_bytes_total"
)

const (
	HelpTextQueueDelivered = "Queue items delivered to the remote service"
	HelpTextQueueFailures  = "Queue item delivery failures by kind (transient, rejected)"
	HelpTextQueueDepth     = "Items waiting in each outbound queue"
	HelpTextDrainDuration  = "Duration of one drain or process cycle"
	HelpTextOnline         = "1 when the remote service is reachable"
	HelpTextSyncStatus     = "Current sync status (0 idle, 1 syncing, 2 error)"
	HelpTextMediaBytes     = "Image bytes seen by the compression pipeline by stage (original, compressed)"
)

const (
	LabelQueue = "queue"
	LabelKind  = "kind"
	LabelStage = "stage"
)

const (
	KindTransient = "transient"
	KindRejected  = "rejected"

	StageOriginal   = "original"
	StageCompressed = "compressed"
)

var DrainLatencyBuckets = []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60}
