package main

// General API documentation for swaggo. Regenerate docs with `swag init -g cmd/webhookd/docs.go`.
//
// @title           webhookd API
// @version         1.0
// @description     Receives GitLab webhooks and reconciles Jira issues in the background.
//
// @contact.name   webhookd maintainers
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @schemes http
