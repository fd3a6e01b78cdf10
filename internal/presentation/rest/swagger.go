package rest

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"

	"github.com/labstack/echo/v4"
	echoSwagger "github.com/swaggo/echo-swagger"

	"flower-server/internal/presentation/openapi"
)

// specETag 埋め込みOpenAPI定義のETag（ビルドごとに固定）
var specETag = func() string {
	sum := sha256.Sum256(openapi.Spec)
	return `"` + hex.EncodeToString(sum[:8]) + `"`
}()

// SetupSwagger OpenAPI定義とSwagger UI / ReDocを登録
func SetupSwagger(e *echo.Echo) {
	e.GET("/openapi.yaml", serveSpec)

	e.GET("/swagger/*", echoSwagger.EchoWrapHandler(
		echoSwagger.URL("/openapi.yaml"),
		echoSwagger.DocExpansion("none"),
		echoSwagger.DeepLinking(true),
	))

	e.GET("/redoc", func(c echo.Context) error {
		return c.HTML(http.StatusOK, redocPage)
	})
}

func serveSpec(c echo.Context) error {
	c.Response().Header().Set("ETag", specETag)
	if c.Request().Header.Get("If-None-Match") == specETag {
		return c.NoContent(http.StatusNotModified)
	}
	return c.Blob(http.StatusOK, "application/yaml", openapi.Spec)
}

const redocPage = `<!DOCTYPE html>
<html lang="ja">
<head>
	<meta charset="utf-8"/>
	<meta name="viewport" content="width=device-width, initial-scale=1">
	<title>Flowers Settlement API</title>
</head>
<body style="margin:0">
	<redoc spec-url="/openapi.yaml" hide-download-button></redoc>
	<script src="https://cdn.jsdelivr.net/npm/redoc@2.1.5/bundles/redoc.standalone.js"></script>
</body>
</html>
`
