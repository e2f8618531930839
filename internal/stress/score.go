package stress

import (
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/aldebaran/aldebaranhealth/backend/go-services/internal/apperr"
	"github.com/aldebaran/aldebaranhealth/backend/go-services/pkg/metrics"
)

// Result is the plain PSS-10 score.
type Result struct {
	TotalScore        int     `json:"total_score"`
	StressLevel       string  `json:"stress_level"`
	StressDescription string  `json:"stress_description"`
	Color             string  `json:"color"`
	MaxPossibleScore  int     `json:"max_possible_score"`
	Percentage        float64 `json:"percentage"`
}

// Score validates responses and sums them, reversing the positively phrased
// items. The result does not depend on anything but the input.
func Score(responses []int) (*Result, error) {
	if len(responses) != NumQuestions {
		return nil, fmt.Errorf("%w: PSS-10 requires exactly %d responses, got %d", apperr.ErrInvalidInput, NumQuestions, len(responses))
	}
	total := 0
	for i, r := range responses {
		if r < MinResponse || r > MaxResponse {
			return nil, fmt.Errorf("%w: response %d must be between %d and %d, got %d", apperr.ErrInvalidInput, i+1, MinResponse, MaxResponse, r)
		}
		if questions[i].ReverseScored {
			r = MaxResponse - r
		}
		total += r
	}
	l := levelFor(total)
	return &Result{
		TotalScore:        total,
		StressLevel:       l.Name,
		StressDescription: l.Description,
		Color:             l.Color,
		MaxPossibleScore:  MaxScore,
		Percentage:        math.Round(float64(total)/MaxScore*1000) / 10,
	}, nil
}

type Indicator struct {
	QuestionID int    `json:"question_id"`
	Category   string `json:"category"`
	Note       string `json:"note"`
}

type Risk struct {
	Level   string `json:"level"`
	Urgency string `json:"urgency"`
	Color   string `json:"color"`
}

// Analysis expands a Result with per-item indicators and advice.
type Analysis struct {
	Result          *Result        `json:"pss10_results"`
	Concerns        []Indicator    `json:"high_stress_indicators"`
	Strengths       []Indicator    `json:"positive_indicators"`
	KeyConcerns     []string       `json:"key_concerns"`
	KeyStrengths    []string       `json:"strengths"`
	Recommendations []string       `json:"recommendations"`
	Risk            Risk           `json:"risk_assessment"`
	UserInfo        map[string]any `json:"user_info,omitempty"`
	Timestamp       time.Time      `json:"timestamp"`
}

const keyIndicators = 3

var recommendations = map[string][]string{
	"low": {
		"Continue maintaining your current stress management strategies",
		"Regular exercise and good sleep hygiene",
		"Consider mindfulness or meditation practices for prevention",
	},
	"moderate": {
		"Practice stress management techniques like deep breathing",
		"Ensure adequate sleep (7-9 hours) and regular exercise",
		"Consider talking to friends, family, or a counselor",
		"Try to identify and address specific stress triggers",
	},
	"high": {
		"Consider speaking with a healthcare professional",
		"Practice immediate stress relief techniques (breathing, grounding)",
		"Prioritize self-care and reduce non-essential commitments",
		"Seek support from friends, family, or mental health professionals",
	},
}

// Analyzer produces Analyses. The zero value is not usable; call NewAnalyzer.
type Analyzer struct {
	now    func() time.Time
	logger *zap.Logger
}

type Option func(*Analyzer)

func WithClock(now func() time.Time) Option {
	return func(a *Analyzer) { a.now = now }
}

func WithLogger(l *zap.Logger) Option {
	return func(a *Analyzer) { a.logger = l }
}

func NewAnalyzer(opts ...Option) *Analyzer {
	a := &Analyzer{now: time.Now, logger: zap.NewNop()}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Analyze scores responses and flags items answered at the stressful end
// (3-4 on normal items, 0-1 on reversed ones) or the healthy end.
func (a *Analyzer) Analyze(responses []int, userInfo map[string]any) (*Analysis, error) {
	res, err := Score(responses)
	if err != nil {
		return nil, err
	}

	out := &Analysis{
		Result:       res,
		Concerns:     []Indicator{},
		Strengths:    []Indicator{},
		KeyConcerns:  []string{},
		KeyStrengths: []string{},
		UserInfo:     userInfo,
		Timestamp:    a.now().UTC(),
	}
	for i, r := range responses {
		q := questions[i]
		label := strings.ReplaceAll(q.Category, "_", " ")
		stressed, healthy := r >= 3, r <= 1
		if q.ReverseScored {
			stressed, healthy = healthy, stressed
		}
		switch {
		case stressed && q.ReverseScored:
			out.Concerns = append(out.Concerns, Indicator{q.ID, q.Category, "Low " + label})
		case stressed:
			out.Concerns = append(out.Concerns, Indicator{q.ID, q.Category, "High " + label})
		case healthy && q.ReverseScored:
			out.Strengths = append(out.Strengths, Indicator{q.ID, q.Category, "Good " + label})
		case healthy:
			out.Strengths = append(out.Strengths, Indicator{q.ID, q.Category, "Low " + label})
		}
	}
	for i := 0; i < len(out.Concerns) && i < keyIndicators; i++ {
		out.KeyConcerns = append(out.KeyConcerns, out.Concerns[i].Note)
	}
	for i := 0; i < len(out.Strengths) && i < keyIndicators; i++ {
		out.KeyStrengths = append(out.KeyStrengths, out.Strengths[i].Note)
	}
	out.Recommendations = recommend(res.StressLevel, out.Concerns)
	out.Risk = assessRisk(res.TotalScore, len(out.Concerns))

	metrics.StressAssessments.WithLabelValues(res.StressLevel).Inc()
	a.logger.Debug("stress analysis",
		zap.Int("score", res.TotalScore),
		zap.String("level", res.StressLevel),
		zap.String("risk", out.Risk.Level))
	return out, nil
}

func recommend(level string, concerns []Indicator) []string {
	recs := append([]string(nil), recommendations[level]...)
	var control, overwhelm bool
	for _, c := range concerns {
		control = control || strings.Contains(c.Category, "control")
		overwhelm = overwhelm || strings.Contains(c.Category, "overwhelming")
	}
	if control {
		recs = append(recs, "Focus on building sense of control through planning and organization")
	}
	if overwhelm {
		recs = append(recs, "Break large tasks into smaller, manageable steps")
	}
	return recs
}

// assessRisk escalates on either a high score or many flagged items.
func assessRisk(score, concerns int) Risk {
	switch {
	case score >= 30 || concerns >= 7:
		return Risk{Level: "high", Urgency: "Consider professional support soon", Color: "red"}
	case score >= 20 || concerns >= 4:
		return Risk{Level: "moderate", Urgency: "Monitor and take action if worsening", Color: "yellow"}
	default:
		return Risk{Level: "low", Urgency: "Continue current positive practices", Color: "green"}
	}
}
