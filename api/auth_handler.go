package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// SignInRequest is the body of POST /auth/signin/email.
type SignInRequest struct {
	Email          string `json:"email" binding:"required,max=254"`
	TurnstileToken string `json:"turnstile_token" binding:"required"`
}

// VerifyRequest is the body of POST /auth/verify/otp.
type VerifyRequest struct {
	Email string `json:"email" binding:"required,max=254"`
	OTP   string `json:"otp" binding:"required,max=16"`
}

func (a *API) requestCode(c *gin.Context) {
	var req SignInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithBindError(c, err)
		return
	}

	resp, err := a.svc.RequestCode(c.Request.Context(), req.Email, req.TurnstileToken)
	if err != nil {
		a.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (a *API) verifyCode(c *gin.Context) {
	var req VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithBindError(c, err)
		return
	}

	resp, err := a.svc.VerifyCode(c.Request.Context(), req.Email, req.OTP)
	if err != nil {
		a.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
