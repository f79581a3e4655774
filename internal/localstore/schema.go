package localstore

// Table and index names are a versioned contract shared with the migrations
// under migrations/. Changes must be additive.
const (
	TableProjects     = "projects"
	TableActivities   = "activities"
	TableIssues       = "issues"
	TableDailyLogs    = "daily_logs"
	TablePhotos       = "photos"
	TableCommandQueue = "command_queue"
	TableCaptureQueue = "capture_queue"
)

const (
	IndexByProject   = "by_project"
	IndexByActivity  = "by_activity"
	IndexByOwner     = "by_owner"
	IndexByUploaded  = "by_uploaded"
	IndexByEntityRef = "by_entity_ref"
)

// schema maps each table to its secondary indexes and the JSON path each
// index covers. The path must match the expression used in the migration.
var schema = map[string]map[string]string{
	TableProjects: {},
	TableActivities: {
		IndexByProject: "$.projectId",
	},
	TableIssues: {
		IndexByProject:  "$.projectId",
		IndexByActivity: "$.activityId",
	},
	TableDailyLogs: {
		IndexByActivity: "$.activityId",
		IndexByProject:  "$.projectId",
	},
	TablePhotos: {
		IndexByOwner:    "$.ownerId",
		IndexByUploaded: "$.uploaded",
	},
	TableCommandQueue: {},
	TableCaptureQueue: {
		IndexByEntityRef: "$.payload.entityRef",
	},
}

// Tables returns the names of every table in the current schema.
func Tables() []string {
	names := make([]string, 0, len(schema))
	for name := range schema {
		names = append(names, name)
	}
	return names
}

func indexPath(table, index string) (string, error) {
	indexes, ok := schema[table]
	if !ok {
		return "", unknownTable(table)
	}
	path, ok := indexes[index]
	if !ok {
		return "", unknownIndex(table, index)
	}
	return path, nil
}

func checkTable(table string) error {
	if _, ok := schema[table]; !ok {
		return unknownTable(table)
	}
	return nil
}
