// Package testutil provides in-process fakes of the upstream HTTP services
// (GitHub raw content, GitHub REST API, Notion API) for package tests.
package testutil
