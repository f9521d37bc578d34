package main

// General API documentation for swaggo. Run `make swagger-gen` to generate docs.
//
// @title           animatic bridge API
// @version         1.0
// @description     Loopback control API for the animatic desktop app.
//
// @BasePath  /
//
// @schemes http
