package gemini

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/IAmFuckingGenius/Gemini-Telegram-UserBot/llm"
)

// Image is one generated image returned by the Imagen endpoint.
type Image struct {
	Data []byte
	MIME string
}

type predictRequest struct {
	Instances  []predictInstance `json:"instances"`
	Parameters predictParams     `json:"parameters"`
}

type predictInstance struct {
	Prompt string `json:"prompt"`
}

type predictParams struct {
	SampleCount int `json:"sampleCount"`
}

type predictResponse struct {
	Predictions []struct {
		BytesBase64Encoded string `json:"bytesBase64Encoded"`
		MIMEType           string `json:"mimeType"`
	} `json:"predictions"`
	Error *apiError `json:"error,omitempty"`
}

// GenerateImage runs one Imagen prediction and returns the first sample.
func (c *Client) GenerateImage(ctx context.Context, model, prompt string) (Image, error) {
	body, err := json.Marshal(predictRequest{
		Instances:  []predictInstance{{Prompt: prompt}},
		Parameters: predictParams{SampleCount: 1},
	})
	if err != nil {
		return Image{}, fmt.Errorf("%w: encode request: %v", llm.ErrPermanent, err)
	}

	raw, status, err := c.post(ctx, fmt.Sprintf("/v1beta/models/%s:predict", model), body)
	if err != nil {
		return Image{}, err
	}
	var out predictResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return Image{}, fmt.Errorf("%w: decode response: %v", llm.ErrTransient, err)
	}
	if status < 200 || status >= 300 {
		return Image{}, httpError(status, out.Error, raw)
	}
	if len(out.Predictions) == 0 {
		return Image{}, fmt.Errorf("%w: imagen: empty predictions", llm.ErrTransient)
	}
	data, err := base64.StdEncoding.DecodeString(out.Predictions[0].BytesBase64Encoded)
	if err != nil {
		return Image{}, fmt.Errorf("%w: decode image bytes: %v", llm.ErrTransient, err)
	}
	mime := out.Predictions[0].MIMEType
	if mime == "" {
		mime = "image/png"
	}
	return Image{Data: data, MIME: mime}, nil
}

type operationResponse struct {
	Name     string `json:"name"`
	Done     bool   `json:"done"`
	Response struct {
		GenerateVideoResponse struct {
			GeneratedSamples []struct {
				Video struct {
					URI                string `json:"uri"`
					BytesBase64Encoded string `json:"bytesBase64Encoded"`
				} `json:"video"`
			} `json:"generatedSamples"`
		} `json:"generateVideoResponse"`
	} `json:"response"`
	Error *apiError `json:"error,omitempty"`
}

// GenerateVideo starts a Veo long-running operation and polls it until the
// video is ready or ctx is done. The result is a URI the caller downloads.
func (c *Client) GenerateVideo(ctx context.Context, model, prompt string) (string, error) {
	body, err := json.Marshal(predictRequest{
		Instances:  []predictInstance{{Prompt: prompt}},
		Parameters: predictParams{SampleCount: 1},
	})
	if err != nil {
		return "", fmt.Errorf("%w: encode request: %v", llm.ErrPermanent, err)
	}

	raw, status, err := c.post(ctx, fmt.Sprintf("/v1beta/models/%s:predictLongRunning", model), body)
	if err != nil {
		return "", err
	}
	var op operationResponse
	if err := json.Unmarshal(raw, &op); err != nil {
		return "", fmt.Errorf("%w: decode operation: %v", llm.ErrTransient, err)
	}
	if status < 200 || status >= 300 {
		return "", httpError(status, op.Error, raw)
	}
	if op.Name == "" {
		return "", fmt.Errorf("%w: veo: operation has no name", llm.ErrTransient)
	}

	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for !op.Done {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ticker.C:
		}
		if err := c.getOperation(ctx, op.Name, &op); err != nil {
			return "", err
		}
		if op.Error != nil {
			return "", httpError(http.StatusInternalServerError, op.Error, nil)
		}
	}

	samples := op.Response.GenerateVideoResponse.GeneratedSamples
	if len(samples) == 0 {
		return "", fmt.Errorf("%w: veo: operation finished without samples", llm.ErrTransient)
	}
	return samples[0].Video.URI, nil
}

func (c *Client) getOperation(ctx context.Context, name string, out *operationResponse) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/v1beta/"+name, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", llm.ErrPermanent, err)
	}
	httpReq.Header.Set("x-goog-api-key", c.key())

	resp, err := c.HTTP.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %v", llm.ErrTransient, err)
	}
	defer resp.Body.Close()

	dec := json.NewDecoder(resp.Body)
	*out = operationResponse{}
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("%w: decode operation: %v", llm.ErrTransient, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return httpError(resp.StatusCode, out.Error, nil)
	}
	return nil
}
