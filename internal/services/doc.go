// Package services defines the shared error taxonomy used by pipeline
// stages and external tool clients.
package services
