package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hyperjump/tanya/internal/models"
)

// apiClient talks to a running tanya server. The bolt store holds an exclusive file
// lock, so while the server runs the CLI goes through HTTP instead of opening it.
type apiClient struct {
	baseURL string
	http    *http.Client
}

func newAPIClient(baseURL string) *apiClient {
	return &apiClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 3 * time.Minute},
	}
}

func (c *apiClient) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("server returned %d: %s", resp.StatusCode, apiErr.Error)
		}
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *apiClient) get(path string, out any) error {
	req, err := http.NewRequest(http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *apiClient) postJSON(path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequest(http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *apiClient) Ask(q *models.Question) (*models.Answer, error) {
	if q.Mode == models.ModeGlobal {
		var resp struct {
			Answer   string `json:"answer"`
			Fallback bool   `json:"fallback"`
			Sources  []struct {
				Source string `json:"source"`
			} `json:"sources"`
		}
		if err := c.postJSON("/query/global", map[string]string{"question": q.Text}, &resp); err != nil {
			return nil, err
		}
		ans := &models.Answer{Text: resp.Answer, Fallback: resp.Fallback, Sources: []string{}}
		for _, s := range resp.Sources {
			ans.Sources = append(ans.Sources, s.Source)
		}
		return ans, nil
	}
	var resp struct {
		Answer   string `json:"answer"`
		Source   string `json:"source"`
		Fallback bool   `json:"fallback"`
	}
	if err := c.postJSON("/query", map[string]string{"question": q.Text, "namespace": q.Namespace}, &resp); err != nil {
		return nil, err
	}
	ans := &models.Answer{Text: resp.Answer, Fallback: resp.Fallback, Sources: []string{}}
	if resp.Source != "" {
		ans.Sources = append(ans.Sources, resp.Source)
	}
	return ans, nil
}

func (c *apiClient) Namespaces() ([]string, error) {
	var names []string
	err := c.get("/namespaces", &names)
	return names, err
}

func (c *apiClient) DeleteNamespace(namespace string) error {
	req, err := http.NewRequest(http.MethodDelete, c.baseURL+"/namespaces/delete/"+url.PathEscape(namespace), nil)
	if err != nil {
		return err
	}
	return c.do(req, nil)
}

func (c *apiClient) History(namespace string) ([]models.ConversationTurn, error) {
	path := "/chat/global/history"
	if namespace != models.GlobalNamespace {
		path = "/namespaces/history/" + url.PathEscape(namespace)
	}
	var resp struct {
		History []models.ConversationTurn `json:"history"`
	}
	err := c.get(path, &resp)
	return resp.History, err
}

func (c *apiClient) Status() (map[string]any, error) {
	var status map[string]any
	err := c.get("/status", &status)
	return status, err
}

// Upload sends files as one multipart batch. Only regular files are accepted here;
// directories are expanded by the caller.
func (c *apiClient) Upload(namespace string, paths []string) (*models.IngestResult, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("namespace", namespace); err != nil {
		return nil, err
	}
	for _, p := range paths {
		content, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", p, err)
		}
		fw, err := mw.CreateFormFile("pdf", filepath.Base(p))
		if err != nil {
			return nil, err
		}
		if _, err := fw.Write(content); err != nil {
			return nil, err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}
	req, err := http.NewRequest(http.MethodPost, c.baseURL+"/upload", &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	res := &models.IngestResult{}
	if err := c.do(req, res); err != nil {
		return nil, err
	}
	return res, nil
}
