// Package classifier turns a raw activity with its laps and sample stream
// into a workout title plus a structured detail, using an ordered rule
// chain where the first matching rule wins.
package classifier

import (
	"math"

	"github.com/tyemirov/paceline/internal/strava"
)

const (
	defaultMaxHeartrate    = 190.0
	defaultIntervalPaceGap = 120.0

	minIntervalRepetitions = 2
	tempoSpeedStdDevLimit  = 0.3
	recoveryDistanceSpread = 0.10
)

// Config tunes the rule thresholds that are athlete- or deployment-specific.
type Config struct {
	// MaxHeartrate is the configured ceiling used for percentage comparisons.
	MaxHeartrate float64
	// IntervalPaceGapSec is the minimum pace gap (sec/km) between a fast lap
	// and its neighbouring recovery lap to count as an interval boundary.
	IntervalPaceGapSec float64
}

// Classifier evaluates the rule chain. It holds no mutable state and is safe
// for concurrent use.
type Classifier struct {
	maxHeartrate    float64
	intervalPaceGap float64
}

// Result pairs the display title with the structured rule outcome.
type Result struct {
	Title  string
	Detail Detail
}

// New constructs a classifier, applying defaults for zero-valued config.
func New(configuration Config) *Classifier {
	maxHeartrate := configuration.MaxHeartrate
	if maxHeartrate <= 0 {
		maxHeartrate = defaultMaxHeartrate
	}
	intervalPaceGap := configuration.IntervalPaceGapSec
	if intervalPaceGap <= 0 {
		intervalPaceGap = defaultIntervalPaceGap
	}
	return &Classifier{maxHeartrate: maxHeartrate, intervalPaceGap: intervalPaceGap}
}

// Classify runs the rule chain in priority order and returns the first
// match. Rules missing their required inputs are skipped, so the chain
// always terminates in the distance/time summary.
func (classifier *Classifier) Classify(activity strava.ActivityData, laps []strava.LapData, stream strava.StreamData) Result {
	rules := []func(strava.ActivityData, []strava.LapData, strava.StreamData) *Result{
		classifier.classifyInterval,
		classifier.classifyTempo,
		classifier.classifySpeed,
		classifier.classifyJogging,
		classifier.classifyLongRun,
		classifier.classifyRecovery,
	}
	for _, rule := range rules {
		if result := rule(activity, laps, stream); result != nil {
			return *result
		}
	}
	return classifier.classifySummary(activity)
}

// classifyInterval looks for the fast/recovery alternation typical of track
// repeats. A boundary between two adjacent laps is a candidate when their
// pace gap reaches the threshold; boundaries recurring at stride 2 form the
// repetition run.
func (classifier *Classifier) classifyInterval(activity strava.ActivityData, laps []strava.LapData, stream strava.StreamData) *Result {
	paces := lapPaces(laps)
	if len(paces) < 3 {
		return nil
	}

	candidates := make(map[int]bool)
	for boundary := 0; boundary < len(paces)-1; boundary++ {
		if paces[boundary] <= 0 || paces[boundary+1] <= 0 {
			continue
		}
		if math.Abs(paces[boundary]-paces[boundary+1]) >= classifier.intervalPaceGap {
			candidates[boundary] = true
		}
	}
	if len(candidates) == 0 {
		return nil
	}

	bestStart, bestLength := -1, 0
	for start := range candidates {
		length := 0
		for boundary := start; candidates[boundary]; boundary += 2 {
			length++
		}
		if length > bestLength || (length == bestLength && start < bestStart) {
			bestStart, bestLength = start, length
		}
	}
	if bestLength < minIntervalRepetitions {
		return nil
	}

	var fastDistances, fastPaces, recoveryDistances, recoveryTimes []float64
	for repetition := 0; repetition < bestLength; repetition++ {
		boundary := bestStart + repetition*2
		fastLap, recoveryLap := boundary, boundary+1
		if paces[boundary] > paces[boundary+1] {
			fastLap, recoveryLap = boundary+1, boundary
		}
		fastDistances = append(fastDistances, laps[fastLap].Distance)
		fastPaces = append(fastPaces, paces[fastLap])
		recoveryDistances = append(recoveryDistances, laps[recoveryLap].Distance)
		recoveryTimes = append(recoveryTimes, float64(laps[recoveryLap].ElapsedTime))
	}

	meanRecoveryDistance := mean(recoveryDistances)
	recoveryByDistance := meanRecoveryDistance > 0 &&
		populationStdDev(recoveryDistances) < recoveryDistanceSpread*meanRecoveryDistance

	return &Result{
		Title: "Interval",
		Detail: IntervalDetail{
			Repetitions:            bestLength,
			RepDistanceMeters:      math.Round(mean(fastDistances)),
			RepPaceSecPerKm:        mean(fastPaces),
			RecoveryByDistance:     recoveryByDistance,
			RecoveryDistanceMeters: math.Round(meanRecoveryDistance),
			RecoverySeconds:        math.Round(mean(recoveryTimes)),
		},
	}
}

func (classifier *Classifier) classifyTempo(activity strava.ActivityData, laps []strava.LapData, stream strava.StreamData) *Result {
	heartratePct, heartrateKnown := classifier.heartratePct(activity)
	distanceKm, distanceKnown := distanceKm(activity)
	if !heartrateKnown || !distanceKnown || len(laps) == 0 {
		return nil
	}
	if heartratePct < 75 || heartratePct > 85 {
		return nil
	}
	if distanceKm < 6 || distanceKm > 15 {
		return nil
	}
	speeds := make([]float64, 0, len(laps))
	for _, lap := range laps {
		if lap.AvgSpeed > 0 {
			speeds = append(speeds, lap.AvgSpeed)
		}
	}
	if len(speeds) == 0 || populationStdDev(speeds) >= tempoSpeedStdDevLimit {
		return nil
	}
	return &Result{
		Title: "Tempo run",
		Detail: TempoDetail{
			DistanceKm:   distanceKm,
			PaceSecPerKm: activityPace(activity),
			HeartratePct: heartratePct,
		},
	}
}

func (classifier *Classifier) classifySpeed(activity strava.ActivityData, laps []strava.LapData, stream strava.StreamData) *Result {
	heartratePct, heartrateKnown := classifier.heartratePct(activity)
	distanceKm, distanceKnown := distanceKm(activity)
	if !heartrateKnown || !distanceKnown {
		return nil
	}
	if heartratePct < 85 || distanceKm < 3 || distanceKm > 10 {
		return nil
	}
	return &Result{
		Title: "Speed run",
		Detail: SpeedDetail{
			DistanceKm:   distanceKm,
			PaceSecPerKm: activityPace(activity),
			HeartratePct: heartratePct,
		},
	}
}

// classifyJogging is the moderate-effort catch-all. Its upper bound is
// exclusive so a 75% effort over long distance still reaches the long-run
// rule below it.
func (classifier *Classifier) classifyJogging(activity strava.ActivityData, laps []strava.LapData, stream strava.StreamData) *Result {
	heartratePct, heartrateKnown := classifier.heartratePct(activity)
	distanceKm, distanceKnown := distanceKm(activity)
	if !heartrateKnown || !distanceKnown {
		return nil
	}
	if heartratePct < 40 || heartratePct >= 75 {
		return nil
	}
	return &Result{
		Title: "Jogging",
		Detail: JoggingDetail{
			DistanceKm:   distanceKm,
			PaceSecPerKm: activityPace(activity),
			HeartratePct: heartratePct,
		},
	}
}

func (classifier *Classifier) classifyLongRun(activity strava.ActivityData, laps []strava.LapData, stream strava.StreamData) *Result {
	heartratePct, heartrateKnown := classifier.heartratePct(activity)
	distanceKm, distanceKnown := distanceKm(activity)
	if !heartrateKnown || !distanceKnown {
		return nil
	}
	if heartratePct < 65 || heartratePct > 75 || distanceKm < 15 {
		return nil
	}
	return &Result{
		Title: "Long run",
		Detail: LongRunDetail{
			DistanceKm:   distanceKm,
			PaceSecPerKm: activityPace(activity),
			HeartratePct: heartratePct,
		},
	}
}

func (classifier *Classifier) classifyRecovery(activity strava.ActivityData, laps []strava.LapData, stream strava.StreamData) *Result {
	heartratePct, heartrateKnown := classifier.heartratePct(activity)
	distanceKm, distanceKnown := distanceKm(activity)
	if !heartrateKnown || !distanceKnown {
		return nil
	}
	if heartratePct > 50 || distanceKm < 2 || distanceKm > 8 {
		return nil
	}
	return &Result{
		Title: "Recovery run",
		Detail: RecoveryDetail{
			DistanceKm:   distanceKm,
			HeartratePct: heartratePct,
		},
	}
}

func (classifier *Classifier) classifySummary(activity strava.ActivityData) Result {
	summaryDistanceKm, _ := distanceKm(activity)
	return Result{
		Title: "Run",
		Detail: SummaryDetail{
			DistanceKm:     summaryDistanceKm,
			ElapsedSeconds: activity.ElapsedTime,
		},
	}
}

func (classifier *Classifier) heartratePct(activity strava.ActivityData) (float64, bool) {
	if activity.AvgHeartrate <= 0 || classifier.maxHeartrate <= 0 {
		return 0, false
	}
	return activity.AvgHeartrate / classifier.maxHeartrate * 100, true
}

func distanceKm(activity strava.ActivityData) (float64, bool) {
	if activity.Distance <= 0 {
		return 0, false
	}
	return activity.Distance / 1000, true
}

func activityPace(activity strava.ActivityData) float64 {
	if activity.AvgSpeed > 0 {
		return 1000 / activity.AvgSpeed
	}
	if activity.Distance > 0 && activity.ElapsedTime > 0 {
		return float64(activity.ElapsedTime) / (activity.Distance / 1000)
	}
	return 0
}

func lapPaces(laps []strava.LapData) []float64 {
	paces := make([]float64, len(laps))
	for index, lap := range laps {
		if lap.AvgSpeed > 0 {
			paces[index] = 1000 / lap.AvgSpeed
		}
	}
	return paces
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, value := range values {
		sum += value
	}
	return sum / float64(len(values))
}

func populationStdDev(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	center := mean(values)
	var squared float64
	for _, value := range values {
		squared += (value - center) * (value - center)
	}
	return math.Sqrt(squared / float64(len(values)))
}
