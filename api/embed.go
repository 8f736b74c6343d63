package api

import "embed"

//go:embed openapi/*.yaml
var OpenAPIFS embed.FS

// SpecFile 主规范文件在 OpenAPIFS 中的路径
const SpecFile = "openapi/portal.yaml"
