// Package mocks holds gomock doubles for the push platform and backend.
package mocks

//go:generate mockgen -source=../../push/platform.go -destination=push_mock.go -package=mocks
