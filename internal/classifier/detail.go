package classifier

import "fmt"

// Detail is the structured outcome of one classification rule. Tests assert
// on these fields; Render produces the display string stored alongside.
type Detail interface {
	Kind() string
	Render() string
}

// IntervalDetail describes a detected fast/recovery repetition pattern.
type IntervalDetail struct {
	Repetitions            int
	RepDistanceMeters      float64
	RepPaceSecPerKm        float64
	RecoveryByDistance     bool
	RecoveryDistanceMeters float64
	RecoverySeconds        float64
}

// Kind names the rule outcome.
func (IntervalDetail) Kind() string { return "interval" }

// Render formats the repetition summary.
func (detail IntervalDetail) Render() string {
	recovery := fmt.Sprintf("%.0fs recovery", detail.RecoverySeconds)
	if detail.RecoveryByDistance {
		recovery = fmt.Sprintf("%.0fm recovery", detail.RecoveryDistanceMeters)
	}
	return fmt.Sprintf("%d x %.0fm @ %s, %s",
		detail.Repetitions, detail.RepDistanceMeters, formatPace(detail.RepPaceSecPerKm), recovery)
}

// TempoDetail describes a sustained effort at tempo heart rate.
type TempoDetail struct {
	DistanceKm   float64
	PaceSecPerKm float64
	HeartratePct float64
}

func (TempoDetail) Kind() string { return "tempo" }

func (detail TempoDetail) Render() string {
	return fmt.Sprintf("%.1fkm tempo @ %s, %.0f%% max HR",
		detail.DistanceKm, formatPace(detail.PaceSecPerKm), detail.HeartratePct)
}

// SpeedDetail describes a short high-heart-rate effort.
type SpeedDetail struct {
	DistanceKm   float64
	PaceSecPerKm float64
	HeartratePct float64
}

func (SpeedDetail) Kind() string { return "speed" }

func (detail SpeedDetail) Render() string {
	return fmt.Sprintf("%.1fkm speed run @ %s, %.0f%% max HR",
		detail.DistanceKm, formatPace(detail.PaceSecPerKm), detail.HeartratePct)
}

// JoggingDetail describes a moderate-effort run.
type JoggingDetail struct {
	DistanceKm   float64
	PaceSecPerKm float64
	HeartratePct float64
}

func (JoggingDetail) Kind() string { return "jogging" }

func (detail JoggingDetail) Render() string {
	return fmt.Sprintf("%.1fkm jog @ %s", detail.DistanceKm, formatPace(detail.PaceSecPerKm))
}

// LongRunDetail describes a long aerobic run.
type LongRunDetail struct {
	DistanceKm   float64
	PaceSecPerKm float64
	HeartratePct float64
}

func (LongRunDetail) Kind() string { return "long_run" }

func (detail LongRunDetail) Render() string {
	return fmt.Sprintf("%.1fkm long run @ %s", detail.DistanceKm, formatPace(detail.PaceSecPerKm))
}

// RecoveryDetail describes an easy recovery run.
type RecoveryDetail struct {
	DistanceKm   float64
	HeartratePct float64
}

func (RecoveryDetail) Kind() string { return "recovery" }

func (detail RecoveryDetail) Render() string {
	return fmt.Sprintf("%.1fkm recovery run", detail.DistanceKm)
}

// SummaryDetail is the fallback when heart-rate or distance data is missing.
type SummaryDetail struct {
	DistanceKm     float64
	ElapsedSeconds int
}

func (SummaryDetail) Kind() string { return "summary" }

func (detail SummaryDetail) Render() string {
	minutes := detail.ElapsedSeconds / 60
	seconds := detail.ElapsedSeconds % 60
	return fmt.Sprintf("%.1fkm in %dm %02ds", detail.DistanceKm, minutes, seconds)
}

func formatPace(secPerKm float64) string {
	total := int(secPerKm + 0.5)
	return fmt.Sprintf("%d:%02d/km", total/60, total%60)
}
