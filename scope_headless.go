//go:build headless

package main

import "errors"

var ErrScopeUnavailable = errors.New("scope unavailable in headless build")

type ScopeWindow struct {
	tap *DACTap
}

func init() {
	compiledFeatures = append(compiledFeatures, "scope:headless")
}

func NewScopeWindow(tap *DACTap, audio *ULPAudioOutput) *ScopeWindow {
	return &ScopeWindow{tap: tap}
}

func (s *ScopeWindow) Run() error {
	return ErrScopeUnavailable
}

func (s *ScopeWindow) Close() {}
