package handlers

import (
	"net/url"

	"github.com/gin-gonic/gin"

	"github.com/thereayou/guildchat/pkg/roomkey"
)

// escapedParam returns a path parameter in percent-encoded form. gin matches
// on RawPath only when the request path used non-default escaping, so the
// raw value may or may not already be decoded.
func escapedParam(c *gin.Context, key string) string {
	v := c.Param(key)
	if c.Request.URL.RawPath == "" {
		return url.PathEscape(v)
	}
	return v
}

func groupParam(c *gin.Context) (string, error) {
	return roomkey.GroupName(escapedParam(c, "name"))
}

func emailParam(c *gin.Context) (string, error) {
	email, err := url.PathUnescape(escapedParam(c, "email"))
	if err != nil || email == "" {
		return "", errInvalidEmail
	}
	return email, nil
}
