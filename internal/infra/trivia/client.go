// Package trivia implements the remote question provider client against the
// Open Trivia DB wire format.
package trivia

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"trivia-quiz-service/internal/domain"
)

const (
	defaultBaseURL = "https://opentdb.com/api.php"
	defaultTimeout = 10 * time.Second
)

// Client fetches multiple-choice questions from the remote provider and
// normalizes them into answer-shuffled domain questions.
type Client struct {
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
	rnd        *rand.Rand
	now        func() time.Time
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at a different provider endpoint.
func WithBaseURL(url string) Option {
	return func(c *Client) {
		c.baseURL = url
	}
}

// WithTimeout overrides the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithRandom injects the shuffle source for deterministic tests.
func WithRandom(rnd *rand.Rand) Option {
	return func(c *Client) {
		c.rnd = rnd
	}
}

// WithClock injects the timestamp source for deterministic tests.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		c.now = now
	}
}

// NewClient creates a provider client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL:    defaultBaseURL,
		timeout:    defaultTimeout,
		httpClient: http.DefaultClient,
		rnd:        rand.New(rand.NewSource(time.Now().UnixNano())),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// envelope is the provider's response wrapper. response_code 0 means success;
// the rest are provider-reported semantic errors.
type envelope struct {
	ResponseCode int         `json:"response_code"`
	Results      []rawResult `json:"results"`
}

type rawResult struct {
	Question         string   `json:"question"`
	CorrectAnswer    string   `json:"correct_answer"`
	IncorrectAnswers []string `json:"incorrect_answers"`
	Difficulty       string   `json:"difficulty"`
	Category         string   `json:"category"`
}

var responseCodeMessages = map[int]string{
	1: "no results found for the specified parameters",
	2: "invalid parameter provided",
	3: "token not found",
	4: "token empty",
}

// FetchQuestions requests count questions with optional difficulty and
// category filters. A cache-busting timestamp parameter varies each request
// to reduce repeated-question runs. Every failure mode wraps
// domain.ErrRemoteUnavailable so the caller's fallback chain stays uniform.
func (c *Client) FetchQuestions(ctx context.Context, count int, difficulty domain.Difficulty, category string) ([]domain.Question, error) {
	fetchedAt := c.now()

	params := url.Values{}
	params.Set("amount", strconv.Itoa(count))
	params.Set("type", "multiple")
	if difficulty != "" {
		params.Set("difficulty", string(difficulty))
	}
	if category != "" {
		params.Set("category", category)
	}
	params.Set("timestamp", strconv.FormatInt(fetchedAt.UnixMilli(), 10))

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", domain.ErrRemoteUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: request timed out, check your internet connection", domain.ErrRemoteUnavailable)
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrRemoteUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("%w: too many requests, try again later", domain.ErrRemoteUnavailable)
	case resp.StatusCode >= http.StatusInternalServerError:
		return nil, fmt.Errorf("%w: server error %d, try again later", domain.ErrRemoteUnavailable, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%w: network error %d", domain.ErrRemoteUnavailable, resp.StatusCode)
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", domain.ErrRemoteUnavailable, err)
	}
	if env.ResponseCode != 0 {
		msg, ok := responseCodeMessages[env.ResponseCode]
		if !ok {
			msg = "provider returned an error"
		}
		return nil, fmt.Errorf("%w: %s", domain.ErrRemoteUnavailable, msg)
	}
	if len(env.Results) == 0 {
		return nil, fmt.Errorf("%w: no questions available from the provider", domain.ErrRemoteUnavailable)
	}

	questions := make([]domain.Question, 0, len(env.Results))
	for i, raw := range env.Results {
		questions = append(questions, c.normalize(raw, fetchedAt, i))
	}
	return questions, nil
}

// normalize decodes escaped text, shuffles the options uniformly and then
// relocates the correct answer by value match rather than trusting the
// shuffle to be traceable.
func (c *Client) normalize(raw rawResult, fetchedAt time.Time, position int) domain.Question {
	correct := html.UnescapeString(raw.CorrectAnswer)
	options := make([]string, 0, len(raw.IncorrectAnswers)+1)
	for _, incorrect := range raw.IncorrectAnswers {
		options = append(options, html.UnescapeString(incorrect))
	}
	options = append(options, correct)

	c.rnd.Shuffle(len(options), func(i, j int) {
		options[i], options[j] = options[j], options[i]
	})

	correctIndex := 0
	for i, option := range options {
		if option == correct {
			correctIndex = i
			break
		}
	}

	return domain.Question{
		// Composed from fetch time and position so a second fetch in the same
		// session cannot collide.
		ID:            fmt.Sprintf("%d-%d", fetchedAt.UnixMilli(), position+1),
		Text:          html.UnescapeString(raw.Question),
		Options:       options,
		CorrectAnswer: correctIndex,
		Difficulty:    domain.ParseDifficulty(raw.Difficulty),
		Category:      html.UnescapeString(raw.Category),
	}
}
