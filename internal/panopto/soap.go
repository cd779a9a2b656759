package panopto

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// maxResponseBody caps SOAP replies read into memory.
const maxResponseBody = 8 << 20

type requestEnvelope struct {
	XMLName xml.Name `xml:"http://schemas.xmlsoap.org/soap/envelope/ Envelope"`
	Body    struct {
		Content any
	} `xml:"http://schemas.xmlsoap.org/soap/envelope/ Body"`
}

type responseEnvelope[T any] struct {
	XMLName xml.Name `xml:"Envelope"`
	Body    struct {
		Fault   *soapFault `xml:"Fault"`
		Content *T         `xml:",any"`
	} `xml:"Body"`
}

type soapFault struct {
	Code   string `xml:"faultcode"`
	String string `xml:"faultstring"`
}

func (f *soapFault) Error() string {
	if f.Code == "" {
		return f.String
	}
	return fmt.Sprintf("%s: %s", f.Code, f.String)
}

// call posts one SOAP 1.1 request and decodes the body element into out.
func call[T any](ctx context.Context, c *Client, service, action string, in any, out *T) error {
	env := requestEnvelope{}
	env.Body.Content = in
	payload, err := xml.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode %s: %w", action, err)
	}

	endpoint := c.baseURL + service
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(append([]byte(xml.Header), payload...)))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "text/xml; charset=utf-8")
	req.Header.Set("SOAPAction", `"`+actionNamespace+action+`"`)

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		c.log.Debug().Str("action", action).Str("endpoint", endpoint).Err(err).Msg("soap call failed")
		return fmt.Errorf("%w: %s: %v", ErrRemoteUnavailable, action, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody+1))
	c.log.Debug().
		Str("action", action).
		Str("endpoint", endpoint).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("soap call")
	if err != nil {
		return fmt.Errorf("%w: %s: reading response: %v", ErrRemoteUnavailable, action, err)
	}
	if len(body) > maxResponseBody {
		return fmt.Errorf("%w: %s: response exceeds %d bytes", ErrMalformedResponse, action, maxResponseBody)
	}

	var decoded responseEnvelope[T]
	decodeErr := xml.Unmarshal(body, &decoded)

	if decodeErr == nil && decoded.Body.Fault != nil {
		return fmt.Errorf("%w: %s: %v", ErrRemoteUnavailable, action, decoded.Body.Fault)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("%w: %s: %s %s", ErrRemoteUnavailable, action, resp.Status, snippet(body))
	}
	if decodeErr != nil {
		return fmt.Errorf("%w: %s: %v", ErrMalformedResponse, action, decodeErr)
	}
	if decoded.Body.Content == nil {
		return fmt.Errorf("%w: %s: empty soap body", ErrMalformedResponse, action)
	}
	*out = *decoded.Body.Content
	return nil
}

func snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > 200 {
		return s[:200] + "..."
	}
	return s
}

func trimAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
