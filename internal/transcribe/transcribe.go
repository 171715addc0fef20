// Package transcribe wraps the speech-to-text collaborator. Transcription
// failure is never fatal to the conversation: the intake flow falls back to
// asking for a typed description.
package transcribe

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// defaultEndpoint is the Google Cloud Speech-to-Text REST API.
const defaultEndpoint = "https://speech.googleapis.com/v1/speech:recognize"

// Transcriber converts a voice note to text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, lang string) (string, error)
}

// languageCodes maps citizen language codes to speech API locale codes.
var languageCodes = map[string]string{
	"gu": "gu-IN",
	"hi": "hi-IN",
	"en": "en-IN",
}

// Client is an HTTP speech-to-text client.
type Client struct {
	endpoint string
	apiKey   string
	http     *http.Client
}

// NewClient creates a transcription client. An empty endpoint uses the
// Google Speech API; timeout bounds every call.
func NewClient(endpoint, apiKey string, timeout time.Duration) *Client {
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		endpoint: endpoint,
		apiKey:   apiKey,
		http:     &http.Client{Timeout: timeout},
	}
}

type recognizeRequest struct {
	Config struct {
		Encoding        string `json:"encoding"`
		SampleRateHertz int    `json:"sampleRateHertz"`
		LanguageCode    string `json:"languageCode"`
	} `json:"config"`
	Audio struct {
		Content string `json:"content"`
	} `json:"audio"`
}

type recognizeResponse struct {
	Results []struct {
		Alternatives []struct {
			Transcript string `json:"transcript"`
		} `json:"alternatives"`
	} `json:"results"`
}

// Transcribe sends the audio for recognition with a language hint and
// returns the concatenated transcript.
func (c *Client) Transcribe(ctx context.Context, audio []byte, lang string) (string, error) {
	locale, ok := languageCodes[lang]
	if !ok {
		locale = languageCodes["gu"]
	}

	var reqBody recognizeRequest
	reqBody.Config.Encoding = "OGG_OPUS"
	reqBody.Config.SampleRateHertz = 16000
	reqBody.Config.LanguageCode = locale
	reqBody.Audio.Content = base64.StdEncoding.EncodeToString(audio)

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("transcribe: marshal request: %w", err)
	}

	url := c.endpoint + "?key=" + c.apiKey
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("transcribe: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("transcribe: request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("transcribe: status %d", resp.StatusCode)
	}

	var body recognizeResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("transcribe: decode response: %w", err)
	}

	var parts []string
	for _, r := range body.Results {
		if len(r.Alternatives) > 0 {
			parts = append(parts, r.Alternatives[0].Transcript)
		}
	}
	if len(parts) == 0 {
		return "", fmt.Errorf("transcribe: no recognition results")
	}
	return strings.Join(parts, " "), nil
}
