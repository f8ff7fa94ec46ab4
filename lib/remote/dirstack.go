// Copyright 2026 The Drydock Authors
// SPDX-License-Identifier: Apache-2.0

package remote

import (
	"path"
	"sync"
)

// dirStack is the working-directory stack behind Cd.
type dirStack struct {
	mu   sync.Mutex
	dirs []string
}

// push enters dir, resolved against the current top when relative.
// The returned func truncates the stack back to its depth before the
// push, so scopes restored out of order still leave the right top.
func (s *dirStack) push(dir string) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !path.IsAbs(dir) && len(s.dirs) > 0 {
		dir = path.Join(s.dirs[len(s.dirs)-1], dir)
	}
	depth := len(s.dirs)
	s.dirs = append(s.dirs, dir)

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if len(s.dirs) > depth {
				s.dirs = s.dirs[:depth]
			}
		})
	}
}

// top returns the active directory or "" outside any scope.
func (s *dirStack) top() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.dirs) == 0 {
		return ""
	}
	return s.dirs[len(s.dirs)-1]
}
