package remote

import (
	"context"
	"net/http"
	"time"

	"github.com/tidwall/gjson"
)

const askEndpoint = "/ask"

// Asker obtains an answer for a question from the answer service.
type Asker struct {
	*transport
}

type askRequest struct {
	Question string `json:"question"`
	UserID   string `json:"user_id"`
}

func NewAsker(baseURL string, opts ...Option) *Asker {
	return &Asker{transport: newTransport(baseURL, opts)}
}

// Ask posts question on behalf of userID and returns the answer text.
func (a *Asker) Ask(ctx context.Context, question, userID string) (answer string, err error) {
	started := time.Now()
	defer func() { a.finish("ask", started, err) }()

	body, err := a.do(ctx, http.MethodPost, askEndpoint, askRequest{Question: question, UserID: userID})
	if err != nil {
		return "", err
	}
	if !gjson.ValidBytes(body) {
		return "", &DecodeError{Endpoint: askEndpoint, Message: "response is not valid JSON"}
	}
	res := gjson.GetBytes(body, "answer")
	if res.Type != gjson.String {
		return "", &DecodeError{Endpoint: askEndpoint, Message: "answer is missing"}
	}
	return res.String(), nil
}
