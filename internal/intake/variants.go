package intake

import "github.com/pavelanni/trustgate/internal/model"

// ChoiceQuestion is a single-answer multiple-choice item.
type ChoiceQuestion struct {
	ID           string
	Prompt       string
	Options      []string
	CorrectIndex int
}

// TutorialSection is one titled block of tutorial content.
type TutorialSection struct {
	Title string
	Items []string
}

// Variant is the per-mode content selected once at session start.
type Variant struct {
	Mode          model.Mode
	Tutorial      []TutorialSection
	Comprehension []ChoiceQuestion
}

// ScreeningPassThreshold is the minimum number of correct screening answers.
const ScreeningPassThreshold = 4

// ScreeningQuestions are the eligibility items shown before demographics.
var ScreeningQuestions = []ChoiceQuestion{
	{
		ID:           "s1",
		Prompt:       "Which feature would be least relevant for predicting income?",
		Options:      []string{"Years of education", "Job industry", "Annual working hours", "Favorite color"},
		CorrectIndex: 3,
	},
	{
		ID:           "s2",
		Prompt:       "Which indicates poor data quality?",
		Options:      []string{"Variables with different units", "Missing or inconsistent values", "A large number of rows", "Both numerical and categorical data"},
		CorrectIndex: 1,
	},
	{
		ID:           "s3",
		Prompt:       "According to the table below, what were sales in 2022?",
		Options:      []string{"120,000", "150,000", "180,000", "610"},
		CorrectIndex: 1,
	},
	{
		ID:           "s4",
		Prompt:       "According to the line chart, what was the value in 2022?",
		Options:      []string{"15", "18", "20", "Not shown"},
		CorrectIndex: 1,
	},
	{
		ID:           "s5",
		Prompt:       "Suppose data show that crime rates tend to be higher on hotter days. What conclusion is most appropriate?",
		Options:      []string{"Temperature causes crime", "Crime causes temperature", "They may be correlated, but causation is unclear", "They are unrelated"},
		CorrectIndex: 2,
	},
}

// Attention check answers.
var (
	Attention1Options = []string{"1", "2", "3", "4", "5"}
	Attention1Pass    = "2"

	Attention2Options = []string{"strongly_disagree", "disagree", "agree", "strongly_agree"}
	Attention2Pass    = map[string]bool{"strongly_disagree": true, "disagree": true}
)

// Demographic choice lists.
var (
	AgeOptions         = []string{"18–24", "25–34", "35–44", "45–54", "55–64", "65+"}
	EducationOptions   = []string{"High school", "Some college", "Associate’s degree", "Bachelor’s degree", "Master’s degree", "Doctoral degree"}
	AIStartTimeOptions = []string{"Within the last 6 months", "6–12 months ago", "1–2 years ago", "More than 2 years ago"}
	AIFrequencyOptions = []string{"Never", "A few times a month", "A few times a week", "Daily"}
	AIUseOptions       = []string{
		"Searching for information",
		"Writing or editing text",
		"Coding / technical work",
		"Studying or learning",
		"Creative tasks",
		"Data analysis / research",
	}
)

var (
	aiAnswerItem   = "(1) AI Answer – displays the AI-generated answer to the question."
	sourcesItem    = "(2) Sources Section – lists references associated with the AI-generated answer."
	searchItem     = "(3) Web Search Panel – allows searching for related information within the interface."
	selectionItem  = "(4) Answer Selection Panel – allows you to select your final Yes/No answer and respond to follow-up questions about confidence and information sources used."
	scoreRanges    = "Score ranges: 0–25 (low uncertainty), 25–75 (medium uncertainty), 75–100 (high uncertainty)."
	sourcesAllowed = ChoiceQuestion{Prompt: "Can you use the sources provided in the answer or the web search panel?", Options: []string{"No", "Yes"}, CorrectIndex: 1}

	taskDirections = TutorialSection{
		Title: "Task Directions",
		Items: []string{
			"Answer yes/no questions, one at a time.",
			"Use any combination of the available resources to inform your decision. There is no required approach.",
			"Important: If you use web search, use only the search panel in the interface. Do not open external browser tabs.",
			"After each answer, you'll briefly indicate your confidence and which information sources you used.",
		},
	}
)

func withID(q ChoiceQuestion, id string) ChoiceQuestion {
	q.ID = id
	return q
}

var variants = map[model.Mode]Variant{
	model.ModeBaseline: {
		Mode: model.ModeBaseline,
		Tutorial: []TutorialSection{
			{Title: "Figure Overview", Items: []string{aiAnswerItem, sourcesItem, searchItem, selectionItem}},
			taskDirections,
		},
		Comprehension: []ChoiceQuestion{
			{ID: "b-q1", Prompt: "What is your task for each question?", Options: []string{"Ignore the AI", "Rewrite the AI answer", "Read the question + AI answer, then choose your own Yes/No answer", "Rate the readability"}, CorrectIndex: 2},
			withID(sourcesAllowed, "b-q2"),
			{ID: "b-q3", Prompt: "Is the AI answer always guaranteed to be correct?", Options: []string{"Yes", "No"}, CorrectIndex: 1},
		},
	},
	model.ModeParagraph: {
		Mode: model.ModeParagraph,
		Tutorial: []TutorialSection{
			{Title: "Figure Overview", Items: []string{aiAnswerItem, sourcesItem, searchItem, selectionItem,
				"(5) Uncertainty Score – displays a single uncertainty score (0-100%) for the AI-generated answer as a whole."}},
			{Title: "Uncertainty Score Overview", Items: []string{
				"The interface displays an Uncertainty Score (0–100) for each AI-generated answer.",
				"This score reflects how confident the AI model is in its response. Higher scores mean lower confidence.",
				"Important: The uncertainty score does not tell you whether the answer is correct or incorrect.",
				scoreRanges,
			}},
			taskDirections,
		},
		Comprehension: []ChoiceQuestion{
			{ID: "p-q1", Prompt: "What additional information does this interface show?", Options: []string{"Token highlights", "A graph", "An uncertainty value (0–100) for the answer", "None"}, CorrectIndex: 2},
			{ID: "p-q2", Prompt: "What is your task for each question?", Options: []string{"Rate paragraphs", "Summarize paragraphs", "Read the answer + uncertainty value, then choose your own Yes/No answer"}, CorrectIndex: 2},
			{ID: "p-q3", Prompt: "Does a higher uncertainty value guarantee the paragraph is incorrect?", Options: []string{"Yes", "No"}, CorrectIndex: 1},
			withID(sourcesAllowed, "p-q4"),
		},
	},
	model.ModeToken: {
		Mode: model.ModeToken,
		Tutorial: []TutorialSection{
			{Title: "Figure Overview", Items: []string{aiAnswerItem, sourcesItem, searchItem, selectionItem,
				"(5) Uncertainty Score – displays uncertainty for each individual word (0-100%) using colored highlights within the AI-generated answer."}},
			{Title: "Uncertainty Score Overview", Items: []string{
				"Each word in the AI-generated answer has an associated Uncertainty Score (0–100). You can hover over a word to view its score, and words with uncertainty above the slider threshold are highlighted.",
				"This score reflects how confident the AI model is in that specific part of the response. Higher scores mean lower confidence.",
				"Important: Word-level uncertainty does not indicate whether a word or statement is correct or incorrect.",
				scoreRanges,
			}},
			taskDirections,
		},
		Comprehension: []ChoiceQuestion{
			{ID: "t-q1", Prompt: "What additional information does this interface show?", Options: []string{"Paragraph labels", "A relationship diagram", "Word-level uncertainty highlighting", "None"}, CorrectIndex: 2},
			{ID: "t-q2", Prompt: "What is your task for each question?", Options: []string{"Identify uncertain words", "Rate the highlight colors", "Read the highlighted answer, then choose your own Yes/No answer"}, CorrectIndex: 2},
			{ID: "t-q3", Prompt: "Do red-highlighted words mean the statement is incorrect?", Options: []string{"Yes", "No"}, CorrectIndex: 1},
			withID(sourcesAllowed, "t-q4"),
		},
	},
	model.ModeRelation: {
		Mode: model.ModeRelation,
		Tutorial: []TutorialSection{
			{Title: "Figure Overview", Items: []string{
				"(1) AI Answer – displays the AI-generated answer, organized into a central claim and multiple attacking or supporting sub-arguments.",
				sourcesItem, searchItem, selectionItem,
				"(5) Uncertainty Score – displays uncertainty scores (0-100%) for the central claim of the output and each attacking or supporting sub-argument."}},
			{Title: "Uncertainty Score Overview", Items: []string{
				"The AI-generated output consists of a main claim with an associated Uncertainty Score (0–100), along with supporting and attacking sub-arguments that aim to support or challenge the claim. Each sub-argument also has its own uncertainty score.",
				"These scores reflect how confident the AI model is in each claim or sub-argument. Higher scores mean lower confidence.",
				"Important: Higher uncertainty does not mean a claim or relationship is incorrect.",
				scoreRanges,
			}},
			taskDirections,
		},
		Comprehension: []ChoiceQuestion{
			{ID: "r-q1", Prompt: "What visualization appears in this interface?", Options: []string{"Token highlights", "Paragraph uncertainty", "A diagram with uncertainty values (0–100) on sub-arguments", "None"}, CorrectIndex: 2},
			{ID: "r-q2", Prompt: "What is your task for each question?", Options: []string{"Describe the diagram", "Choose the most uncertain edge", "Read the answer + sub-arguments + their uncertainties, then choose your own Yes/No answer"}, CorrectIndex: 2},
			{ID: "r-q3", Prompt: "Do higher uncertainty values mean the relationship is incorrect?", Options: []string{"Yes", "No"}, CorrectIndex: 1},
			withID(sourcesAllowed, "r-q4"),
		},
	},
}

// VariantFor returns the content for mode. Unknown modes get the baseline variant.
func VariantFor(mode model.Mode) Variant {
	if v, ok := variants[mode]; ok {
		return v
	}
	return variants[model.ModeBaseline]
}
