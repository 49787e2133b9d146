package assessment

import "math"

// Band is a letter-grade bucket; Tier 1 is the best band.
type Band struct {
	Label string `json:"label"`
	Tier  int    `json:"tier"`
}

var bands = []struct {
	min  float64
	band Band
}{
	{90, Band{Label: "A", Tier: 1}},
	{85, Band{Label: "A-", Tier: 2}},
	{80, Band{Label: "B+", Tier: 3}},
	{75, Band{Label: "B", Tier: 4}},
	{70, Band{Label: "B-", Tier: 5}},
	{65, Band{Label: "C+", Tier: 6}},
	{60, Band{Label: "C", Tier: 7}},
}

// FailingBand is returned for every percentage under 60.
var FailingBand = Band{Label: "F", Tier: 8}

// GradeBand maps a percentage to its band. Lower edges are inclusive.
func GradeBand(percent float64) Band {
	for _, b := range bands {
		if percent >= b.min {
			return b.band
		}
	}
	return FailingBand
}

// ScoreRecord is the slice of a submission the aggregator reads.
type ScoreRecord struct {
	MarksObtained float64
	TotalMarks    float64
	Passed        bool
	Late          bool
	PendingReview bool
}

// Report holds class-level numbers for one assessment.
type Report struct {
	RosterSize            int            `json:"roster_size"`
	SubmittedCount        int            `json:"submitted_count"`
	AttendanceRatePercent int            `json:"attendance_rate_percent"`
	AverageScorePercent   float64        `json:"average_score_percent"`
	HighestScorePercent   float64        `json:"highest_score_percent"`
	AverageBand           Band           `json:"average_band"`
	PassedCount           int            `json:"passed_count"`
	PendingReviewCount    int            `json:"pending_review_count"`
	LateCount             int            `json:"late_count"`
	BandDistribution      map[string]int `json:"band_distribution"`
}

// Aggregate computes the report from the full submission set. Records with a
// non-positive total count as 0% in the average and are left out of the
// highest score and the band distribution.
func Aggregate(records []ScoreRecord, rosterSize int) Report {
	report := Report{
		RosterSize:       rosterSize,
		SubmittedCount:   len(records),
		BandDistribution: make(map[string]int),
	}

	if rosterSize > 0 {
		report.AttendanceRatePercent = int(math.Round(float64(len(records)) / float64(rosterSize) * 100))
	}

	var sum float64
	highest := 0.0
	for _, record := range records {
		percent := Percent(record.MarksObtained, record.TotalMarks)
		sum += percent

		if record.TotalMarks > 0 {
			if percent > highest {
				highest = percent
			}
			report.BandDistribution[GradeBand(percent).Label]++
		}
		if record.Passed {
			report.PassedCount++
		}
		if record.Late {
			report.LateCount++
		}
		if record.PendingReview {
			report.PendingReviewCount++
		}
	}

	if len(records) > 0 {
		report.AverageScorePercent = sum / float64(len(records))
	}
	report.HighestScorePercent = highest
	report.AverageBand = GradeBand(report.AverageScorePercent)

	return report
}
