package database

// Job is an annotation job: a codebook plus the units to be coded.
type Job struct {
	ID           int64
	Name         string
	CodebookYAML string
	CreatedAt    *string
	UpdatedAt    *string
}

// Unit is one stored document of a job. Fields and tokens are kept as JSON
// blobs; the job layer owns their shape.
type Unit struct {
	ID          int64
	JobID       int64
	ExternalID  string
	URL         *string
	FieldsJSON  string
	TokensJSON  *string
	BodyFetched bool
	Position    int
	CollectedAt *string
}

// Session is one coder's pass through a job.
type Session struct {
	Token        string
	JobID        int64
	Coder        *string
	ProgressJSON *string
	CreatedAt    *string
	UpdatedAt    *string
}

// AnnotationRow is one persisted annotation. The full annotation is stored
// as JSON; the extracted columns exist for querying and export.
type AnnotationRow struct {
	ID           string
	SessionToken string
	JobID        int64
	UnitID       string
	Variable     string
	BodyJSON     string
	Status       string
	CreatedAt    *string
}

// Stats contains aggregate database statistics.
type Stats struct {
	Jobs         int
	Units        int
	FetchedUnits int
	Sessions     int
	Annotations  int
}
