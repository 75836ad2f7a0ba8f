package main

// General API documentation for swaggo. Run `make swagger-gen` to generate docs.
//
// @title           sqlgend API
// @version         1.0
// @description     HTTP API for local natural-language to SQL conversion.
//
// @contact.name   sqlgend maintainers
// @contact.url    https://github.com/your-org/sqlgend
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @schemes http
