package player

import (
	"io"
)

// volumeReader wraps a PCM source and applies volume with frame
// alignment, so the device only ever sees whole s16le stereo frames.
// Incomplete trailing bytes are held back until the next read.
type volumeReader struct {
	src     io.Reader
	volume  func() float64
	onData  func(n int) // called with every chunk of frames delivered
	residue []byte      // at most frameSize-1 bytes
}

func newVolumeReader(src io.Reader, volume func() float64, onData func(int)) *volumeReader {
	return &volumeReader{
		src:     src,
		volume:  volume,
		onData:  onData,
		residue: make([]byte, 0, frameSize),
	}
}

func (vr *volumeReader) Read(p []byte) (int, error) {
	offset := 0
	if len(vr.residue) > 0 {
		offset = copy(p, vr.residue)
		vr.residue = vr.residue[:0]
	}

	n, err := vr.src.Read(p[offset:])
	n += offset

	if n > 0 {
		aligned := (n / frameSize) * frameSize
		if aligned < n {
			vr.residue = append(vr.residue, p[aligned:n]...)
			n = aligned
		}

		if n > 0 {
			vol := vr.volume()
			for i := 0; i+1 < n; i += 2 {
				sample := int16(uint16(p[i]) | uint16(p[i+1])<<8)
				sample = int16(float64(sample) * vol)
				p[i] = byte(sample)
				p[i+1] = byte(sample >> 8)
			}
			if vr.onData != nil {
				vr.onData(n)
			}
		}
	}
	return n, err
}

// resampleReader converts s16le stereo PCM from srcRate to dstRate by
// linear interpolation. Live MP3 streams are commonly 44.1 kHz while
// the output context is fixed at 48 kHz for its whole lifetime.
type resampleReader struct {
	src      io.Reader
	step     float64 // source frames advanced per output frame
	pos      float64 // fractional position between cur and next
	cur      [2]int16
	next     [2]int16
	primed   bool
	srcEnded error
}

func newResampleReader(src io.Reader, srcRate, dstRate int) io.Reader {
	if srcRate == dstRate || srcRate <= 0 {
		return src
	}
	return &resampleReader{
		src:  src,
		step: float64(srcRate) / float64(dstRate),
	}
}

func (r *resampleReader) readFrame() ([2]int16, error) {
	var b [frameSize]byte
	if _, err := io.ReadFull(r.src, b[:]); err != nil {
		return [2]int16{}, err
	}
	return [2]int16{
		int16(uint16(b[0]) | uint16(b[1])<<8),
		int16(uint16(b[2]) | uint16(b[3])<<8),
	}, nil
}

func (r *resampleReader) Read(p []byte) (int, error) {
	if !r.primed {
		if r.srcEnded != nil {
			return 0, r.srcEnded
		}
		var err error
		if r.cur, err = r.readFrame(); err != nil {
			r.srcEnded = err
			return 0, err
		}
		if r.next, err = r.readFrame(); err != nil {
			r.srcEnded = err
			return 0, err
		}
		r.primed = true
	}

	written := 0
	for written+frameSize <= len(p) {
		// Advance the source window until pos falls inside it.
		for r.pos >= 1 {
			if r.srcEnded != nil {
				if written > 0 {
					return written, nil
				}
				return 0, r.srcEnded
			}
			frame, err := r.readFrame()
			if err != nil {
				r.srcEnded = err
				if written > 0 {
					return written, nil
				}
				return 0, err
			}
			r.cur = r.next
			r.next = frame
			r.pos -= 1
		}

		for ch := 0; ch < 2; ch++ {
			v := float64(r.cur[ch]) + (float64(r.next[ch])-float64(r.cur[ch]))*r.pos
			s := int16(v)
			p[written+ch*2] = byte(s)
			p[written+ch*2+1] = byte(s >> 8)
		}
		written += frameSize
		r.pos += r.step
	}
	return written, nil
}
