// Package main provides the entry point of pmhub, the permission resolution
// service of the project management backend. It resolves the effective
// permissions of a user through the user's roles and groups, caches them in
// a process-local tier and in redis, and answers permission checks for route
// guards over a JSON api built on Fiber.
package main
