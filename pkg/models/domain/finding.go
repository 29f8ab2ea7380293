package domain

type Severity int

const (
	SeverityInfo Severity = iota
	SeverityLow
	SeverityMedium
	SeverityHigh
)

func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "low"
	case SeverityMedium:
		return "medium"
	case SeverityHigh:
		return "high"
	default:
		return "info"
	}
}

// ChangeStatus records how a finding relates to the customer's history:
// first-ever observation is New, anything seen before is Recurring.
type ChangeStatus string

const (
	ChangeNew       ChangeStatus = "new"
	ChangeRecurring ChangeStatus = "recurring"
)

type ResourceDef struct {
	ID   string
	Name string
	Type string
}

// Finding is one raw observation produced by a collector for a single
// subscription. Identity across runs is derived from its content hash,
// never from the resource id alone.
type Finding struct {
	Severity       Severity
	Category       string
	Resource       ResourceDef
	Text           string
	Recommendation string
}

// SeverityCounts aggregates findings by severity. Info findings are
// dropped upstream and never counted.
type SeverityCounts struct {
	Total  int
	High   int
	Medium int
	Low    int
}

func (c *SeverityCounts) Add(s Severity) {
	switch s {
	case SeverityHigh:
		c.High++
	case SeverityMedium:
		c.Medium++
	case SeverityLow:
		c.Low++
	default:
		return
	}
	c.Total++
}
