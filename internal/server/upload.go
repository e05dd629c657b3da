package server

import (
	"strings"

	"github.com/gin-gonic/gin"
	licensedomain "github.com/smallbiznis/keygate/internal/license/domain"
	uploaddomain "github.com/smallbiznis/keygate/internal/upload/domain"
	"github.com/smallbiznis/keygate/pkg/db/pagination"
)

func (s *Server) IssueUploadCredential(c *gin.Context) {
	var req uploaddomain.IssueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, licensedomain.ErrInvalidFormat)
		return
	}
	req.LicenseKey = strings.TrimSpace(req.LicenseKey)
	req.ProductSlug = strings.TrimSpace(req.ProductSlug)
	req.Domain = strings.TrimSpace(req.Domain)
	req.FileName = strings.TrimSpace(req.FileName)

	resp, err := s.uploadSvc.Issue(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respondOK(c, resp)
}

func (s *Server) ListUploads(c *gin.Context) {
	var query struct {
		pagination.Page
		LicenseKey  string `form:"license_key"`
		ProductSlug string `form:"product_slug"`
		Domain      string `form:"domain"`
		Status      string `form:"status"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, licensedomain.ErrInvalidFormat)
		return
	}

	resp, err := s.uploadSvc.List(c.Request.Context(), uploaddomain.ListRequest{
		LicenseKey:  strings.TrimSpace(query.LicenseKey),
		ProductSlug: strings.TrimSpace(query.ProductSlug),
		Domain:      strings.TrimSpace(query.Domain),
		Status:      strings.TrimSpace(query.Status),
		Page:        query.Page,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respondOK(c, resp)
}

func (s *Server) CompleteUpload(c *gin.Context) {
	var req uploaddomain.CompleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, licensedomain.ErrInvalidFormat)
		return
	}
	req.Credential = strings.TrimSpace(req.Credential)

	resp, err := s.uploadSvc.Complete(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respondOKWithMessage(c, "Upload finalized", resp)
}
