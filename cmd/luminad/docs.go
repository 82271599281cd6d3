package main

// General API documentation for swaggo. Run `make swagger-gen` to generate docs.
//
// @title           luminad API
// @version         1.0
// @description     HTTP API for text-to-image sampling with a pretrained flow-matching model.
//
// @contact.name   luminad maintainers
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @schemes http
