package gateway

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/zap"
)

func wirePayload(t *testing.T, xmlDoc string) string {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("result.xml")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write([]byte(xmlDoc)); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := New(srv.URL, "DECL", zap.NewNop())
	c.now = func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }
	return c
}

func decodeRequest(t *testing.T, r *http.Request) requestEnvelope {
	t.Helper()
	var env requestEnvelope
	if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
		t.Fatalf("decode request envelope: %v", err)
	}
	return env
}

var testCred = Credential{CliCode: "1000", Token: "secret-token"}

func TestFetchListBuildsRequestAndParses(t *testing.T) {
	listXML := `<?xml version="1.0" encoding="UTF-8"?><DeclarationList><Declaration><guid>g-1</guid><status>R</status></Declaration></DeclarationList>`

	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		env := decodeRequest(t, r)
		if env.MessageType != "DECL.REQ.60.1" {
			t.Errorf("MessageType = %s", env.MessageType)
		}
		if env.Token != "secret-token" {
			t.Errorf("Token = %s", env.Token)
		}
		for _, want := range []string{
			"<cli_code>1000</cli_code>",
			"<date_begin>20250103T000000</date_begin>",
			"<date_end>20250110T235959</date_end>",
			"<date_type>1</date_type>",
			"<status>R</status>",
			"<creation_date>20250601T120000</creation_date>",
		} {
			if !strings.Contains(env.MessageBody, want) {
				t.Errorf("request body missing %s in %s", want, env.MessageBody)
			}
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"messageBody": wirePayload(t, listXML)})
	})

	from := time.Date(2025, 1, 3, 14, 30, 0, 0, time.UTC)
	to := time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC)
	summaries, err := c.FetchList(context.Background(), testCred, from, to)
	if err != nil {
		t.Fatal(err)
	}
	if len(summaries) != 1 || summaries[0].GUID != "g-1" {
		t.Errorf("summaries = %+v", summaries)
	}
}

func TestFetchListEmptyResponses(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"http 204", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		}},
		{"blank body", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("  \n"))
		}},
		{"empty message body", func(w http.ResponseWriter, _ *http.Request) {
			_ = json.NewEncoder(w).Encode(map[string]string{"messageBody": ""})
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := testClient(t, tt.handler)
			summaries, err := c.FetchList(context.Background(), testCred, time.Now(), time.Now())
			if err != nil {
				t.Fatal(err)
			}
			if len(summaries) != 0 {
				t.Errorf("summaries = %+v, want none", summaries)
			}
		})
	}
}

func TestFetchListServerErrorCarriesHint(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})
	_, err := c.FetchList(context.Background(), testCred, time.Now(), time.Now())
	var gwErr *Error
	if !errors.As(err, &gwErr) {
		t.Fatalf("err = %v, want *Error", err)
	}
	if gwErr.HTTPStatus != http.StatusInternalServerError {
		t.Errorf("status = %d", gwErr.HTTPStatus)
	}
	if !strings.Contains(gwErr.Message, "that far back") {
		t.Errorf("message = %q, want the no-data hint", gwErr.Message)
	}
}

func TestFetchListChannelTimeoutBody(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "CHANNEL_TIMEOUT: request still queued", http.StatusBadRequest)
	})
	_, err := c.FetchList(context.Background(), testCred, time.Now(), time.Now())
	var gwErr *Error
	if !errors.As(err, &gwErr) {
		t.Fatalf("err = %v, want *Error", err)
	}
	if gwErr.HTTPStatus != http.StatusBadRequest || !strings.Contains(gwErr.Message, "CHANNEL_TIMEOUT") {
		t.Errorf("error = %+v", gwErr)
	}
}

func TestFetchListVendorError(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{
			"errorCode":    "E42",
			"errorMessage": "invalid token",
		})
	})
	_, err := c.FetchList(context.Background(), testCred, time.Now(), time.Now())
	var gwErr *Error
	if !errors.As(err, &gwErr) {
		t.Fatalf("err = %v, want *Error", err)
	}
	if gwErr.VendorCode != "E42" || gwErr.Message != "invalid token" {
		t.Errorf("error = %+v", gwErr)
	}
}

func TestFetchListMalformedEnvelope(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<html>not json</html>"))
	})
	_, err := c.FetchList(context.Background(), testCred, time.Now(), time.Now())
	var gwErr *Error
	if !errors.As(err, &gwErr) {
		t.Fatalf("err = %v, want *Error", err)
	}
}

func TestFetchDetail(t *testing.T) {
	detailXML := `<?xml version="1.0" encoding="UTF-8"?><Declaration><guid>g-9</guid><full>yes</full></Declaration>`

	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		env := decodeRequest(t, r)
		if env.MessageType != "DECL.REQ.61.1" {
			t.Errorf("MessageType = %s", env.MessageType)
		}
		if !strings.Contains(env.MessageBody, "<guid>g-9</guid>") {
			t.Errorf("body = %s", env.MessageBody)
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"messageBody": wirePayload(t, detailXML)})
	})

	got, err := c.FetchDetail(context.Background(), testCred, "g-9")
	if err != nil {
		t.Fatal(err)
	}
	if got != detailXML {
		t.Errorf("detail = %q", got)
	}
}

func TestFetchDetailEmpty(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	got, err := c.FetchDetail(context.Background(), testCred, "g-0")
	if err != nil {
		t.Fatal(err)
	}
	if got != "" {
		t.Errorf("detail = %q, want empty", got)
	}
}
