package qase

// This file contains the Qase endpoints used by the reporter.

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/url"
	"path"
	"strconv"

	"github.com/qasego/qasego/model"
)

// casesPageSize is the page size used when listing cases
const casesPageSize = 100

type caseList struct {
	Total    int `json:"total"`
	Count    int `json:"count"`
	Entities []struct {
		ID model.CaseID `json:"id"`
	} `json:"entities"`
}

// ListCaseIDs loads the id of every case of the project. Pages are requested
// until an empty one is returned.
func (c *Client) ListCaseIDs(ctx context.Context) ([]model.CaseID, error) {
	var ids []model.CaseID
	for {
		r := request{
			method:   http.MethodGet,
			endpoint: "list_cases",
			path:     "/case/" + url.PathEscape(c.project),
			query: url.Values{
				"limit":  {strconv.Itoa(casesPageSize)},
				"offset": {strconv.Itoa(len(ids))},
			},
		}

		var page caseList
		if err := c.do(ctx, r, &page); err != nil {
			return nil, fmt.Errorf("failed to list cases: %w", err)
		}
		if len(page.Entities) == 0 {
			break
		}
		for _, e := range page.Entities {
			ids = append(ids, e.ID)
		}
	}

	c.logger.Debug().Int("cases", len(ids)).Str("project", c.project).Msg("Loaded project cases")
	return ids, nil
}

// CreateRun creates a run and returns it as stored by Qase.
func (c *Client) CreateRun(ctx context.Context, run model.RunCreate) (model.Run, error) {
	r, err := c.jsonRequest(http.MethodPost, "create_run", "/run/"+url.PathEscape(c.project), run)
	if err != nil {
		return model.Run{}, err
	}

	var created struct {
		ID int64 `json:"id"`
	}
	if err := c.do(ctx, r, &created); err != nil {
		return model.Run{}, err
	}
	return c.GetRun(ctx, created.ID)
}

// GetRun loads a run by id.
func (c *Client) GetRun(ctx context.Context, id int64) (model.Run, error) {
	r := request{
		method:   http.MethodGet,
		endpoint: "get_run",
		path:     fmt.Sprintf("/run/%s/%d", url.PathEscape(c.project), id),
	}

	var run model.Run
	if err := c.do(ctx, r, &run); err != nil {
		return model.Run{}, err
	}
	return run, nil
}

// CreateResult submits one result to a run and returns the result hash.
func (c *Client) CreateResult(ctx context.Context, runID int64, report model.ResultReport) (string, error) {
	p := fmt.Sprintf("/result/%s/%d", url.PathEscape(c.project), runID)
	r, err := c.jsonRequest(http.MethodPost, "create_result", p, report)
	if err != nil {
		return "", err
	}

	var res struct {
		CaseID model.CaseID `json:"case_id"`
		Hash   string       `json:"hash"`
	}
	if err := c.do(ctx, r, &res); err != nil {
		return "", err
	}
	return res.Hash, nil
}

// Attachment is an uploaded file.
type Attachment struct {
	Hash     string `json:"hash"`
	Filename string `json:"filename"`
	URL      string `json:"url"`
}

// UploadAttachment uploads content as a project attachment.
func (c *Client) UploadAttachment(ctx context.Context, content []byte, filename string) (Attachment, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return Attachment{}, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(content); err != nil {
		return Attachment{}, fmt.Errorf("failed to write form file: %w", err)
	}
	if err := mw.Close(); err != nil {
		return Attachment{}, fmt.Errorf("failed to close multipart body: %w", err)
	}

	r := request{
		method:      http.MethodPost,
		endpoint:    "upload_attachment",
		path:        "/attachment/" + url.PathEscape(c.project),
		body:        buf.Bytes(),
		contentType: mw.FormDataContentType(),
	}

	var uploaded []Attachment
	if err := c.do(ctx, r, &uploaded); err != nil {
		return Attachment{}, err
	}
	if len(uploaded) == 0 {
		return Attachment{}, fmt.Errorf("qase returned no attachment for %s", filename)
	}
	return uploaded[0], nil
}

// StorageName is the registry name of the attachment backed file storage
const StorageName = "qase"

// AttachmentStorage stores files as Qase attachments.
type AttachmentStorage struct {
	client *Client
}

// NewAttachmentStorage wraps client as a file storage.
func NewAttachmentStorage(client *Client) *AttachmentStorage {
	return &AttachmentStorage{client: client}
}

// SaveFile uploads content and returns its public URL. Qase keeps a flat
// namespace so only the base name of filename is sent.
func (s *AttachmentStorage) SaveFile(ctx context.Context, content []byte, filename string) (string, error) {
	a, err := s.client.UploadAttachment(ctx, content, path.Base(filename))
	if err != nil {
		return "", err
	}
	return a.URL, nil
}
