/*
Copyright 2024 Blnk Finance Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package api

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/blnkfinance/surveylink"
	"github.com/blnkfinance/surveylink/internal/apierror"
	"github.com/blnkfinance/surveylink/model"
)

const (
	defaultRecordsLimit = 100
	maxRecordsLimit     = 1000
)

type methodSummary struct {
	Method     model.LinkageMethod `json:"linkage_method"`
	Confidence model.Confidence    `json:"confidence"`
	Count      int                 `json:"count"`
	Share      string              `json:"share"`
}

type runResponse struct {
	Run     *model.LinkageRun     `json:"run"`
	Summary []methodSummary       `json:"summary"`
	Skipped []surveylink.RowError `json:"skipped_rows,omitempty"`
}

func summarize(stats model.LinkageStats) []methodSummary {
	out := make([]methodSummary, 0, len(stats.Counts))
	for _, m := range model.LinkageMethods() {
		out = append(out, methodSummary{
			Method:     m,
			Confidence: m.Confidence(),
			Count:      stats.Counts[m],
			Share:      stats.Share(m).StringFixed(4),
		})
	}
	return out
}

func openUpload(c *gin.Context, field string) (multipart.File, string, error) {
	file, header, err := c.Request.FormFile(field)
	if err != nil {
		return nil, "", apierror.NewAPIError(apierror.ErrInvalidInput, fmt.Sprintf("%s file is required", field), err)
	}
	return file, header.Filename, nil
}

// CreateRun links an uploaded transaction export with an uploaded survey export.
// Both files travel in one multipart form as "transactions" and "surveys"; "dry_run" is optional.
func (a Api) CreateRun(c *gin.Context) {
	dryRun, err := strconv.ParseBool(c.DefaultPostForm("dry_run", "false"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "dry_run must be a boolean"})
		return
	}

	txnFile, txnName, err := openUpload(c, "transactions")
	if err != nil {
		c.JSON(apierror.MapErrorToHTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	defer txnFile.Close()

	surveyFile, surveyName, err := openUpload(c, "surveys")
	if err != nil {
		c.JSON(apierror.MapErrorToHTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	defer surveyFile.Close()

	transactions, txnSkipped, err := surveylink.ParseTransactions(txnFile, txnName, a.columns.Transactions)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	surveys, surveySkipped, err := surveylink.ParseSurveys(surveyFile, surveyName, a.columns.Surveys)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := a.linker.Run(c.Request.Context(), transactions, surveys, surveylink.RunOptions{DryRun: dryRun})
	if err != nil {
		logrus.Error(err)
		c.JSON(apierror.MapErrorToHTTPStatus(err), gin.H{"error": "Failed to run linkage"})
		return
	}

	c.JSON(http.StatusCreated, runResponse{
		Run:     result.Run,
		Summary: summarize(result.Run.Stats),
		Skipped: append(txnSkipped, surveySkipped...),
	})
}

// GetRun returns a linkage run and its per-method summary.
func (a Api) GetRun(c *gin.Context) {
	id, passed := c.Params.Get("id")
	if !passed || id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required. pass id in the route /:id"})
		return
	}

	run, err := a.linker.GetLinkageRun(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, runResponse{Run: run, Summary: summarize(run.Stats)})
}

// GetRunRecords returns a page of a run's linked records, in survey input order.
func (a Api) GetRunRecords(c *gin.Context) {
	id, passed := c.Params.Get("id")
	if !passed || id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required. pass id in the route /:id"})
		return
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultRecordsLimit)))
	if err != nil || limit < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
		return
	}
	if limit > maxRecordsLimit {
		limit = maxRecordsLimit
	}
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "offset must be a non-negative integer"})
		return
	}

	records, err := a.linker.GetLinkedRecords(c.Request.Context(), id, limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"run_id": id, "limit": limit, "offset": offset, "records": records})
}

func respondError(c *gin.Context, err error) {
	if errors.Is(err, surveylink.ErrNoDataSource) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	status := apierror.MapErrorToHTTPStatus(err)
	if status == http.StatusInternalServerError {
		logrus.Error(err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
