package main

import (
	"errors"
	"fmt"
	"io"

	lua "github.com/yuin/gopher-lua"
)

var ErrLuaNoSampleFunc = errors.New("lua source must define sample(n, rate)")

func init() {
	RegisterPCMFormat(".lua", OpenLuaSource)
}

// LuaSource renders PCM from a script. The script defines
//
//	function sample(n, rate) return left, right end
//
// returning values in [-1, 1] for frame n; right defaults to left. Optional
// globals rate, channels and duration (seconds) shape the stream.
type LuaSource struct {
	L        *lua.LState
	fn       lua.LValue
	rate     int
	channels int
	frames   int64
	pos      int64
}

func OpenLuaSource(r io.ReadSeeker) (PCMSource, error) {
	code, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return NewLuaSource(string(code))
}

func NewLuaSource(code string) (*LuaSource, error) {
	L := lua.NewState()
	L.SetGlobal("rate", lua.LNumber(DEFAULT_SAMPLE_RATE))
	L.SetGlobal("channels", lua.LNumber(2))
	if err := L.DoString(code); err != nil {
		L.Close()
		return nil, fmt.Errorf("lua: %w", err)
	}
	fn := L.GetGlobal("sample")
	if fn.Type() != lua.LTFunction {
		L.Close()
		return nil, ErrLuaNoSampleFunc
	}
	s := &LuaSource{
		L:        L,
		fn:       fn,
		rate:     int(lua.LVAsNumber(L.GetGlobal("rate"))),
		channels: int(lua.LVAsNumber(L.GetGlobal("channels"))),
	}
	if s.rate <= 0 {
		L.Close()
		return nil, fmt.Errorf("lua: invalid rate %d", s.rate)
	}
	if s.channels != 1 && s.channels != 2 {
		L.Close()
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedChannels, s.channels)
	}
	if d := float64(lua.LVAsNumber(L.GetGlobal("duration"))); d > 0 {
		s.frames = int64(d * float64(s.rate))
	}
	return s, nil
}

func (s *LuaSource) SampleRate() int { return s.rate }
func (s *LuaSource) Channels() int   { return s.channels }

func (s *LuaSource) Close() error {
	s.L.Close()
	return nil
}

func (s *LuaSource) Read(p []byte) (int, error) {
	frameSize := s.channels * SAMPLE_BYTES
	n := 0
	for len(p)-n >= frameSize {
		if s.frames > 0 && s.pos >= s.frames {
			break
		}
		err := s.L.CallByParam(lua.P{Fn: s.fn, NRet: 2, Protect: true},
			lua.LNumber(s.pos), lua.LNumber(s.rate))
		if err != nil {
			return n, fmt.Errorf("lua: frame %d: %w", s.pos, err)
		}
		left := s.L.Get(-2)
		right := s.L.Get(-1)
		s.L.Pop(2)
		if right == lua.LNil {
			right = left
		}
		putSample(p[n:], float64(lua.LVAsNumber(left)))
		if s.channels == 2 {
			putSample(p[n+SAMPLE_BYTES:], float64(lua.LVAsNumber(right)))
		}
		s.pos++
		n += frameSize
	}
	if n == 0 && len(p) >= frameSize {
		return 0, io.EOF
	}
	return n, nil
}
