package server

import (
	"strings"

	"github.com/gin-gonic/gin"
	licensedomain "github.com/smallbiznis/keygate/internal/license/domain"
	"github.com/smallbiznis/keygate/pkg/db/pagination"
)

func (s *Server) AdminListLicenses(c *gin.Context) {
	var query struct {
		pagination.Pagination
		Status      string `form:"status"`
		ProductSlug string `form:"product_slug"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, licensedomain.ErrInvalidFormat)
		return
	}

	resp, err := s.licenseSvc.List(c.Request.Context(), licensedomain.ListRequest{
		Pagination:  query.Pagination,
		Status:      strings.TrimSpace(query.Status),
		ProductSlug: strings.TrimSpace(query.ProductSlug),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respondOK(c, resp)
}

func (s *Server) AdminCreateLicense(c *gin.Context) {
	var req licensedomain.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, licensedomain.ErrInvalidFormat)
		return
	}
	req.ProductSlug = strings.TrimSpace(req.ProductSlug)
	req.CustomerName = strings.TrimSpace(req.CustomerName)
	req.CustomerEmail = strings.TrimSpace(req.CustomerEmail)

	resp, err := s.licenseSvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respondCreated(c, resp)
}

func (s *Server) AdminGetLicense(c *gin.Context) {
	resp, err := s.licenseSvc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respondOK(c, resp)
}

func (s *Server) AdminUpdateLicense(c *gin.Context) {
	var req licensedomain.UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, licensedomain.ErrInvalidFormat)
		return
	}
	req.ID = c.Param("id")

	resp, err := s.licenseSvc.Update(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respondOK(c, resp)
}

func (s *Server) AdminRevokeLicense(c *gin.Context) {
	var req struct {
		Reason string `json:"reason"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, licensedomain.ErrInvalidFormat)
		return
	}

	resp, err := s.licenseSvc.Revoke(c.Request.Context(), c.Param("id"), strings.TrimSpace(req.Reason))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respondOKWithMessage(c, "License revoked", resp)
}
