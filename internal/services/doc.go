// Package services holds the failure taxonomy shared by provider clients
// and the components that call them. Subpackages implement the individual
// collaborator clients (giphy, gimage, ffmpeg).
package services
