// Package stress scores the ten-item Perceived Stress Scale (PSS-10).
//
// Each item is answered 0 (Never) to 4 (Very Often). Items 4, 5, 7 and 8 are
// phrased positively and reverse-scored, so the total ranges from 0 to 40.
package stress

// Question is one PSS-10 item.
type Question struct {
	ID            int    `json:"id"`
	Question      string `json:"question"`
	ReverseScored bool   `json:"reverse_scored"`
	Category      string `json:"category"`
}

type ResponseOption struct {
	Value int    `json:"value"`
	Label string `json:"label"`
}

// Level is a score band with inclusive bounds.
type Level struct {
	Name        string `json:"name"`
	Min         int    `json:"min"`
	Max         int    `json:"max"`
	Description string `json:"description"`
	Color       string `json:"color"`
}

const (
	MinResponse  = 0
	MaxResponse  = 4
	MaxScore     = 40
	NumQuestions = 10
)

var questions = []Question{
	{1, "In the last month, how often have you been upset because of something that happened unexpectedly?", false, "unpredictability"},
	{2, "In the last month, how often have you felt that you were unable to control the important things in your life?", false, "lack_of_control"},
	{3, "In the last month, how often have you felt nervous and stressed?", false, "nervousness"},
	{4, "In the last month, how often have you felt confident about your ability to handle your personal problems?", true, "confidence"},
	{5, "In the last month, how often have you felt that things were going your way?", true, "positive_perception"},
	{6, "In the last month, how often have you found that you could not cope with all the things that you had to do?", false, "overwhelming"},
	{7, "In the last month, how often have you been able to control irritations in your life?", true, "control_irritations"},
	{8, "In the last month, how often have you felt that you were on top of things?", true, "mastery"},
	{9, "In the last month, how often have you been angered because of things that were outside of your control?", false, "external_anger"},
	{10, "In the last month, how often have you felt difficulties were piling up so high that you could not overcome them?", false, "overwhelmed"},
}

var responseOptions = []ResponseOption{
	{0, "Never"},
	{1, "Almost Never"},
	{2, "Sometimes"},
	{3, "Fairly Often"},
	{4, "Very Often"},
}

// levels are ordered and cover 0..MaxScore without gaps.
var levels = []Level{
	{Name: "low", Min: 0, Max: 13, Description: "Low perceived stress", Color: "green"},
	{Name: "moderate", Min: 14, Max: 26, Description: "Moderate perceived stress", Color: "yellow"},
	{Name: "high", Min: 27, Max: 40, Description: "High perceived stress", Color: "red"},
}

// Questionnaire is what a client needs to render the form.
type Questionnaire struct {
	Questions        []Question       `json:"questions"`
	ResponseOptions  []ResponseOption `json:"response_options"`
	Levels           []Level          `json:"levels"`
	Instructions     string           `json:"instructions"`
	ScaleDescription string           `json:"scale_description"`
}

// GetQuestionnaire returns a copy of the questionnaire.
func GetQuestionnaire() Questionnaire {
	return Questionnaire{
		Questions:        append([]Question(nil), questions...),
		ResponseOptions:  append([]ResponseOption(nil), responseOptions...),
		Levels:           append([]Level(nil), levels...),
		Instructions:     "For each question, choose the response that best describes how you have felt in the last month.",
		ScaleDescription: "Rate each item from 0 (Never) to 4 (Very Often)",
	}
}

func levelFor(score int) Level {
	for _, l := range levels {
		if score >= l.Min && score <= l.Max {
			return l
		}
	}
	return levels[len(levels)-1]
}
