// Package api defines the HTTP surface of the registry server: route paths,
// request/response payloads, token handling, and the client used in proxy
// mode. Handlers live in the server package.
package api

// Route paths served by the registry server.
const (
	RouteHealthcheck = "/healthcheck"

	RouteAuthLogin   = "/api/auth/login"
	RouteAuthRefresh = "/api/auth/refresh"

	RouteCardCheck        = "/api/card/check"
	RouteCardCreate       = "/api/card/create"
	RouteCardUpdate       = "/api/card/update"
	RouteCardDelete       = "/api/card/delete"
	RouteCardList         = "/api/card/list"
	RouteCardVersion      = "/api/card/version"
	RouteCardVersions     = "/api/card/versions"
	RouteCardKey          = "/api/card/key"
	RouteCardRepositories = "/api/card/repositories"
	RouteRegistryPage     = "/api/card/registry/page"
	RouteRegistryStats    = "/api/card/registry/stats"

	RouteFilesList      = "/api/files/list"
	RouteFilesInfo      = "/api/files/info"
	RouteFilesExists    = "/api/files/exists"
	RouteFilesContent   = "/api/files/content"
	RouteFilesMultipart = "/api/files/multipart"
	RouteFilesPresigned = "/api/files/presigned"
	RouteFilesCopy      = "/api/files/copy"
	RouteFilesDelete    = "/api/files/delete"
)
