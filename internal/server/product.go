package server

import (
	"strconv"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	licensedomain "github.com/smallbiznis/keygate/internal/license/domain"
	productdomain "github.com/smallbiznis/keygate/internal/product/domain"
)

func (s *Server) AdminListProducts(c *gin.Context) {
	activeOnly := c.Query("active") == "true"

	products, err := s.productSvc.List(c.Request.Context(), activeOnly)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respondOK(c, gin.H{"items": products})
}

func (s *Server) AdminCreateProduct(c *gin.Context) {
	var req productdomain.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, licensedomain.ErrInvalidFormat)
		return
	}

	resp, err := s.productSvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respondCreated(c, resp)
}

func (s *Server) AdminUpdateProduct(c *gin.Context) {
	id, err := parseSnowflakeID(c.Param("id"))
	if err != nil {
		AbortWithError(c, licensedomain.ErrInvalidID)
		return
	}

	var req productdomain.UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, licensedomain.ErrInvalidFormat)
		return
	}

	resp, err := s.productSvc.Update(c.Request.Context(), id, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respondOK(c, resp)
}

func parseSnowflakeID(raw string) (snowflake.ID, error) {
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, err
	}
	return snowflake.ID(n), nil
}
