package lms

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/studyloop/reviewquiz-backend/internal/logger"
	"github.com/studyloop/reviewquiz-backend/internal/platform/envutil"
)

// restClient talks to the host LMS sync webservice. The service speaks
// plain JSON over a token-authenticated endpoint; 404 and 423 are part
// of the contract (entity gone, entity mid-deletion) and map onto the
// sentinel errors rather than surfacing as HTTP failures.
type restClient struct {
	log        *logger.Logger
	baseURL    string
	token      string
	httpClient *http.Client
}

func NewRESTClient(log *logger.Logger) (Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	baseURL := strings.TrimRight(strings.TrimSpace(os.Getenv("LMS_BASE_URL")), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("missing LMS_BASE_URL")
	}
	token := strings.TrimSpace(os.Getenv("LMS_WS_TOKEN"))
	if token == "" {
		return nil, fmt.Errorf("missing LMS_WS_TOKEN")
	}
	timeout := envutil.Duration("LMS_HTTP_TIMEOUT", 30*time.Second)

	return &restClient{
		log:        log.With("service", "LMSClient"),
		baseURL:    baseURL,
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

type lmsHTTPError struct {
	StatusCode int
	Body       string
}

func (e *lmsHTTPError) Error() string {
	return fmt.Sprintf("lms http %d: %s", e.StatusCode, e.Body)
}

func (c *restClient) do(ctx context.Context, method, path string, body any, out any) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("lms request: %w", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode == http.StatusLocked || resp.StatusCode == http.StatusConflict:
		return ErrLocked
	case resp.StatusCode >= 400:
		return &lmsHTTPError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *restClient) QuizInfo(ctx context.Context, quizID int64) (*QuizInfo, error) {
	var info QuizInfo
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/quizzes/%d", quizID), nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

func (c *restClient) QuizExists(ctx context.Context, quizID int64) error {
	return c.do(ctx, http.MethodGet, fmt.Sprintf("/quizzes/%d/status", quizID), nil, nil)
}

func (c *restClient) UserAttempts(ctx context.Context, quizID, userID int64) ([]Attempt, error) {
	var out []Attempt
	path := fmt.Sprintf("/quizzes/%d/attempts?user=%d", quizID, userID)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *restClient) AttemptAnswers(ctx context.Context, attemptID int64) ([]AttemptAnswer, error) {
	var out []AttemptAnswer
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/attempts/%d/answers", attemptID), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *restClient) HasOpenAttempt(ctx context.Context, quizID, userID int64) (bool, error) {
	attempts, err := c.UserAttempts(ctx, quizID, userID)
	if err != nil {
		return false, err
	}
	for _, a := range attempts {
		if a.Open() {
			return true, nil
		}
	}
	return false, nil
}

func (c *restClient) UserName(ctx context.Context, userID int64) (string, error) {
	var out struct {
		FullName string `json:"fullname"`
	}
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/users/%d", userID), nil, &out); err != nil {
		return "", err
	}
	return out.FullName, nil
}

func (c *restClient) EnsureCourse(ctx context.Context, fullName, shortName string) (int64, error) {
	var out struct {
		ID int64 `json:"id"`
	}
	body := map[string]any{"fullname": fullName, "shortname": shortName}
	if err := c.do(ctx, http.MethodPost, "/courses/ensure", body, &out); err != nil {
		return 0, err
	}
	return out.ID, nil
}

func (c *restClient) EnrolUser(ctx context.Context, courseID, userID int64) error {
	body := map[string]any{"user_id": userID}
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/courses/%d/enrolments", courseID), body, nil)
}

func (c *restClient) CreateQuiz(ctx context.Context, courseID int64, section, name string) (int64, error) {
	var out struct {
		ID int64 `json:"id"`
	}
	body := map[string]any{"section": section, "name": name}
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/courses/%d/quizzes", courseID), body, &out); err != nil {
		return 0, err
	}
	return out.ID, nil
}

func (c *restClient) FindQuizByName(ctx context.Context, courseID int64, name string) (int64, error) {
	var out struct {
		ID int64 `json:"id"`
	}
	path := fmt.Sprintf("/courses/%d/quizzes/lookup?name=%s", courseID, url.QueryEscape(name))
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return 0, err
	}
	return out.ID, nil
}

func (c *restClient) AddQuestion(ctx context.Context, quizID, questionID int64) error {
	body := map[string]any{"question_id": questionID}
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/quizzes/%d/questions", quizID), body, nil)
}

func (c *restClient) RemoveQuestion(ctx context.Context, quizID, questionID int64) error {
	err := c.do(ctx, http.MethodDelete, fmt.Sprintf("/quizzes/%d/questions/%d", quizID, questionID), nil, nil)
	if errors.Is(err, ErrNotFound) {
		// Quiz or slot already gone; removal is complete either way.
		return nil
	}
	return err
}

func (c *restClient) ResequenceSlots(ctx context.Context, quizID int64, order []int64) error {
	body := map[string]any{"order": order}
	err := c.do(ctx, http.MethodPut, fmt.Sprintf("/quizzes/%d/slots", quizID), body, nil)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}

func (c *restClient) RecomputeGrade(ctx context.Context, quizID int64) error {
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("/quizzes/%d/recompute-grade", quizID), nil, nil)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}

func (c *restClient) DeleteOpenAttempt(ctx context.Context, quizID, userID int64) error {
	path := fmt.Sprintf("/quizzes/%d/attempts/open?user=%d", quizID, userID)
	err := c.do(ctx, http.MethodDelete, path, nil, nil)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}

func (c *restClient) RebuildCourseCache(ctx context.Context, courseID int64) error {
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("/courses/%d/rebuild-cache", courseID), nil, nil)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}
