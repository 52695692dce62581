package services

import (
	"bytes"
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"strings"
	"time"

	appContext "github.com/alphabatem/common/context"
	"github.com/rs/zerolog/log"

	"github.com/icupa/giomessaging/model"
	"github.com/icupa/giomessaging/shared"
)

// QuestionSource produces a question set for a game. QuestionService is the
// Gemini-backed implementation; tests substitute a fixed set.
type QuestionSource interface {
	GenerateWithRetry(ctx context.Context, topic string, count int) ([]model.Question, error)
}

type QuestionService struct {
	appContext.DefaultService

	redisSvc *RedisService

	httpClient *http.Client
	apiKey     string
	baseURL    string
	modelName  string
	maxRetries int
}

const QUESTION_SVC = "question_svc"

// Subtopic rotation keeps consecutive questions from clustering on one area.
var topicAreas = map[string][]string{
	"science": {
		"Physics", "Chemistry", "Biology", "Astronomy", "Earth Science",
		"Environmental Science", "Medicine", "Technology", "Mathematics",
	},
	"history": {
		"Ancient Civilizations", "Middle Ages", "Renaissance", "Modern History",
		"World Wars", "Cold War", "Ancient Egypt", "Roman Empire", "Asian History",
	},
	"geography": {
		"Physical Geography", "Human Geography", "Climate", "Natural Resources",
		"Countries and Capitals", "Landforms", "Oceans", "Cultural Geography",
	},
	"entertainment": {
		"Movies", "Television", "Music", "Theater", "Video Games",
		"Books", "Comics", "Celebrities", "Pop Culture",
	},
	"sports": {
		"Football", "Basketball", "Baseball", "Soccer", "Tennis",
		"Olympics", "Racing", "Combat Sports", "Winter Sports",
	},
	"technology": {
		"Computer Science", "Internet", "Mobile Technology", "AI and Robotics",
		"Social Media", "Gaming", "Cybersecurity", "Innovation", "Space Technology",
	},
}

func (svc QuestionService) Id() string {
	return QUESTION_SVC
}

func (svc *QuestionService) Configure(ctx *appContext.Context) error {
	svc.httpClient = &http.Client{
		Timeout: 60 * time.Second,
	}
	svc.apiKey = os.Getenv("GEMINI_API_KEY")
	svc.baseURL = os.Getenv("GEMINI_BASE_URL")
	if svc.baseURL == "" {
		svc.baseURL = "https://generativelanguage.googleapis.com"
	}
	svc.modelName = os.Getenv("GEMINI_MODEL")
	if svc.modelName == "" {
		svc.modelName = "gemini-pro"
	}
	svc.maxRetries = 3
	return svc.DefaultService.Configure(ctx)
}

func (svc *QuestionService) Start() error {
	svc.redisSvc = svc.Service(REDIS_SVC).(*RedisService)
	return nil
}

// GenerateWithRetry retries full-set generation with linear backoff; a set
// with fewer questions than requested counts as a failed attempt.
func (svc *QuestionService) GenerateWithRetry(ctx context.Context, topic string, count int) ([]model.Question, error) {
	var lastErr error
	for attempt := 1; attempt <= svc.maxRetries; attempt++ {
		questions, err := svc.generate(ctx, topic, count)
		if err == nil && len(questions) == count {
			return questions, nil
		}
		if err == nil {
			err = fmt.Errorf("generated %d of %d questions", len(questions), count)
		}
		lastErr = err
		log.Warn().Err(err).Int("attempt", attempt).Str("topic", topic).Msg("Question generation attempt failed")

		if attempt < svc.maxRetries {
			select {
			case <-time.After(time.Duration(attempt) * time.Second):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}
	return nil, lastErr
}

func (svc *QuestionService) generate(ctx context.Context, topic string, count int) ([]model.Question, error) {
	start := time.Now()
	defer func() {
		questionGenDuration.Observe(time.Since(start).Seconds())
	}()

	questions := make([]model.Question, 0, count)
	usedSubtopics := map[string]bool{}
	previous := make([]string, 0, count)

	areas, ok := topicAreas[strings.ToLower(topic)]
	if !ok {
		areas = []string{"General Knowledge"}
	}

	for i := 0; i < count; i++ {
		difficulty := difficultyForIndex(i, count)
		subtopic := pickSubtopic(areas, usedSubtopics)

		cacheKey := fmt.Sprintf("question:%s_%d", strings.ToLower(topic), i)
		var cached model.Question
		if svc.redisSvc != nil {
			if err := svc.redisSvc.GetJSON(ctx, cacheKey, &cached); err == nil && cached.Question != "" {
				questions = append(questions, cached)
				previous = append(previous, cached.Question)
				continue
			}
		}

		q, err := svc.generateOne(ctx, topic, subtopic, difficulty, previous)
		if err != nil {
			return nil, err
		}

		if svc.redisSvc != nil {
			if err := svc.redisSvc.Set(ctx, cacheKey, q, time.Hour); err != nil {
				log.Warn().Err(err).Str("key", cacheKey).Msg("Failed to cache question")
			}
		}

		questions = append(questions, *q)
		previous = append(previous, q.Question)

		// Light pacing to stay clear of the model's rate limit.
		select {
		case <-time.After(200 * time.Millisecond):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return questions, nil
}

func (svc *QuestionService) generateOne(ctx context.Context, topic, subtopic, difficulty string, previous []string) (*model.Question, error) {
	prompt := buildQuestionPrompt(topic, subtopic, difficulty, previous)

	reqBody := map[string]interface{}{
		"contents": []map[string]interface{}{
			{"parts": []map[string]string{{"text": prompt}}},
		},
	}
	data, err := shared.JSONAPI.Marshal(reqBody)
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", svc.baseURL, svc.modelName, svc.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := svc.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("generation API returned status %d", resp.StatusCode)
	}

	var result struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	if err := shared.JSONAPI.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}
	if len(result.Candidates) == 0 || len(result.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("generation API returned no candidates")
	}

	return ParseGeneratedQuestion(result.Candidates[0].Content.Parts[0].Text, difficulty, subtopic)
}

// ParseGeneratedQuestion decodes the model's JSON (correct answer first by
// prompt contract) and shuffles the answer position.
func ParseGeneratedQuestion(text, difficulty, subtopic string) (*model.Question, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	var parsed struct {
		Question    string   `json:"question"`
		Options     []string `json:"options"`
		Explanation string   `json:"explanation"`
	}
	if err := shared.JSONAPI.Unmarshal([]byte(text), &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse generated question: %w", err)
	}
	if parsed.Question == "" || len(parsed.Options) < 3 {
		return nil, fmt.Errorf("generated question is incomplete")
	}

	correct := parsed.Options[0]
	shuffled := append([]string(nil), parsed.Options...)
	ShuffleStrings(shuffled)

	correctIndex := 0
	for i, opt := range shuffled {
		if opt == correct {
			correctIndex = i
			break
		}
	}

	return &model.Question{
		Question:           parsed.Question,
		Options:            shuffled,
		CorrectAnswerIndex: correctIndex,
		Explanation:        parsed.Explanation,
		Difficulty:         difficulty,
		Subtopic:           subtopic,
	}, nil
}

func buildQuestionPrompt(topic, subtopic, difficulty string, previous []string) string {
	return fmt.Sprintf(`
Generate a unique %s multiple-choice trivia question about %s focusing on %s.
The question should not be similar to these previous questions: %s

Format the response exactly as follows:
{
  "question": "The complete question text",
  "options": [
    "First option (correct answer)",
    "Second option",
    "Third option",
    "Fourth option"
  ],
  "explanation": "Brief explanation of why the first option is correct"
}

Requirements:
1. Question should be clear and engaging
2. All options should be plausible
3. Options should be approximately the same length
4. No joke or obvious wrong answers
5. Question should test knowledge, not just common sense
6. Include specific facts or details
7. No true/false questions
8. The correct answer must always be the first option
`, difficulty, topic, subtopic, strings.Join(previous, ", "))
}

// difficultyForIndex ramps easy -> medium -> hard over the set.
func difficultyForIndex(i, count int) string {
	switch {
	case float64(i) < float64(count)*0.3:
		return shared.DifficultyEasy
	case float64(i) < float64(count)*0.7:
		return shared.DifficultyMedium
	default:
		return shared.DifficultyHard
	}
}

func pickSubtopic(areas []string, used map[string]bool) string {
	available := make([]string, 0, len(areas))
	for _, a := range areas {
		if !used[a] {
			available = append(available, a)
		}
	}
	if len(available) == 0 {
		for a := range used {
			delete(used, a)
		}
		available = areas
	}
	choice := available[rand.Intn(len(available))]
	used[choice] = true
	return choice
}

// ShuffleStrings is a Fisher-Yates shuffle in place.
func ShuffleStrings(items []string) {
	for i := len(items) - 1; i > 0; i-- {
		j := rand.Intn(i + 1)
		items[i], items[j] = items[j], items[i]
	}
}

// ShuffleQuestions randomizes question order before a game starts.
func ShuffleQuestions(questions []model.Question) {
	for i := len(questions) - 1; i > 0; i-- {
		j := rand.Intn(i + 1)
		questions[i], questions[j] = questions[j], questions[i]
	}
}
