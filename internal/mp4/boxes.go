package mp4

import (
	"encoding/binary"
)

// box is an in-progress ISO/BMFF box: a 4-byte size, a 4-byte type, and
// a body that may itself contain nested boxes. Building bottom-up
// (children first) lets the size field be computed without a second
// pass, the same shape the original's mp4::FileBuilder/BoxWriter used.
type box struct {
	typ  [4]byte
	body []byte
}

func newBox(typ string) *box {
	var t [4]byte
	copy(t[:], typ)
	return &box{typ: t}
}

func (b *box) writeU8(v uint8)   { b.body = append(b.body, v) }
func (b *box) writeU16(v uint16) { b.body = appendU16(b.body, v) }
func (b *box) writeU24(v uint32) { b.body = appendU24(b.body, v) }
func (b *box) writeU32(v uint32) { b.body = appendU32(b.body, v) }
func (b *box) writeU64(v uint64) { b.body = appendU64(b.body, v) }
func (b *box) writeBytes(p []byte) { b.body = append(b.body, p...) }
func (b *box) writeChild(c *box)  { b.body = append(b.body, c.encode()...) }

func (b *box) encode() []byte {
	out := make([]byte, 8, 8+len(b.body))
	binary.BigEndian.PutUint32(out[0:4], uint32(8+len(b.body)))
	copy(out[4:8], b.typ[:])
	return append(out, b.body...)
}

func appendU16(dst []byte, v uint16) []byte {
	var tmp [2]byte
	binary.BigEndian.PutUint16(tmp[:], v)
	return append(dst, tmp[:]...)
}

func appendU24(dst []byte, v uint32) []byte {
	return append(dst, byte(v>>16), byte(v>>8), byte(v))
}

func appendU32(dst []byte, v uint32) []byte {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], v)
	return append(dst, tmp[:]...)
}

func appendU64(dst []byte, v uint64) []byte {
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], v)
	return append(dst, tmp[:]...)
}

// fullBoxHeader writes the version+flags word common to "full boxes".
func (b *box) writeFullHeader(version uint8, flags uint32) {
	b.writeU8(version)
	b.body = append(b.body, byte(flags>>16), byte(flags>>8), byte(flags))
}

func ftypBox() []byte {
	b := newBox("ftyp")
	b.writeBytes([]byte("isom"))
	b.writeU32(0)
	b.writeBytes([]byte("isom"))
	b.writeBytes([]byte("iso2"))
	b.writeBytes([]byte("avc1"))
	b.writeBytes([]byte("mp41"))
	return b.encode()
}

// mvhdBox writes a movie header; durationTicks is in the 90kHz timescale
// used throughout this package.
func mvhdBox(durationTicks uint64, nextTrackID uint32) []byte {
	b := newBox("mvhd")
	b.writeFullHeader(1, 0)
	b.writeU64(0) // creation_time
	b.writeU64(0) // modification_time
	b.writeU32(90000) // timescale
	b.writeU64(durationTicks)
	b.writeU32(0x00010000) // rate 1.0
	b.writeU16(0x0100)     // volume 1.0
	b.writeU16(0)          // reserved
	b.writeU32(0)
	b.writeU32(0)
	for _, v := range [9]uint32{0x00010000, 0, 0, 0, 0x00010000, 0, 0, 0, 0x40000000} {
		b.writeU32(v)
	}
	for i := 0; i < 6; i++ {
		b.writeU32(0)
	}
	b.writeU32(nextTrackID)
	return b.encode()
}

func tkhdBox(trackID uint32, durationTicks uint64, width, height int) []byte {
	b := newBox("tkhd")
	b.writeFullHeader(1, 0x7) // enabled | in_movie | in_preview
	b.writeU64(0)
	b.writeU64(0)
	b.writeU32(trackID)
	b.writeU32(0)
	b.writeU64(durationTicks)
	b.writeU32(0)
	b.writeU32(0)
	b.writeU16(0)
	b.writeU16(0)
	b.writeU16(0)
	b.writeU16(0)
	for _, v := range [9]uint32{0x00010000, 0, 0, 0, 0x00010000, 0, 0, 0, 0x40000000} {
		b.writeU32(v)
	}
	b.writeU32(uint32(width) << 16)
	b.writeU32(uint32(height) << 16)
	return b.encode()
}

func mdhdBox(durationTicks uint64) []byte {
	b := newBox("mdhd")
	b.writeFullHeader(1, 0)
	b.writeU64(0)
	b.writeU64(0)
	b.writeU32(90000)
	b.writeU64(durationTicks)
	b.writeU16(0x55c4) // language "und"
	b.writeU16(0)
	return b.encode()
}

func hdlrBox() []byte {
	b := newBox("hdlr")
	b.writeFullHeader(0, 0)
	b.writeU32(0)
	b.writeBytes([]byte("vide"))
	b.writeU32(0)
	b.writeU32(0)
	b.writeU32(0)
	b.writeBytes([]byte("VideoHandler\x00"))
	return b.encode()
}

func vmhdBox() []byte {
	b := newBox("vmhd")
	b.writeFullHeader(0, 1)
	b.writeU16(0)
	b.writeU16(0)
	b.writeU16(0)
	b.writeU16(0)
	return b.encode()
}

func drefBox() []byte {
	inner := newBox("url ")
	inner.writeFullHeader(0, 1)
	b := newBox("dref")
	b.writeFullHeader(0, 0)
	b.writeU32(1)
	b.writeChild(inner)
	return b.encode()
}

func dinfBox() []byte {
	b := newBox("dinf")
	b.writeBytes(drefBox())
	return b.encode()
}

// avcCBox wraps the caller-supplied AVCDecoderConfigurationRecord bytes
// verbatim; this package does not interpret codec internals.
func avcCBox(data []byte) []byte {
	b := newBox("avcC")
	b.writeBytes(data)
	return b.encode()
}

func avc1Box(width, height int, avcC []byte) []byte {
	b := newBox("avc1")
	for i := 0; i < 6; i++ {
		b.writeU8(0)
	}
	b.writeU16(1) // data_reference_index
	b.writeU16(0)
	b.writeU16(0)
	for i := 0; i < 3; i++ {
		b.writeU32(0)
	}
	b.writeU16(uint16(width))
	b.writeU16(uint16(height))
	b.writeU32(0x00480000) // h-res 72dpi
	b.writeU32(0x00480000) // v-res 72dpi
	b.writeU32(0)
	b.writeU16(1) // frame_count
	for i := 0; i < 32; i++ {
		b.writeU8(0) // compressorname
	}
	b.writeU16(0x0018) // depth
	b.writeU16(0xffff) // pre_defined
	b.writeBytes(avcCBox(avcC))
	return b.encode()
}

func stsdBox(entry SampleEntry) []byte {
	b := newBox("stsd")
	b.writeFullHeader(0, 0)
	b.writeU32(1)
	b.writeBytes(avc1Box(entry.Width, entry.Height, entry.Data))
	return b.encode()
}

// emptyTableBox writes a full-box table header with zero entries, used
// for the sample tables this package always presents empty (stts/stsc/
// stco) because the real per-sample timing/offset tables belong to the
// moof/traf of each media segment, not the initialization segment.
func emptyTableBox(typ string) []byte {
	b := newBox(typ)
	b.writeFullHeader(0, 0)
	b.writeU32(0)
	return b.encode()
}

func stblBox(entry SampleEntry) []byte {
	b := newBox("stbl")
	b.writeBytes(stsdBox(entry))
	b.writeBytes(emptyTableBox("stts"))
	b.writeBytes(emptyTableBox("stsc"))
	b.writeBytes(emptyTableBox("stsz"))
	b.writeBytes(emptyTableBox("stco"))
	return b.encode()
}

func minfBox(entry SampleEntry) []byte {
	b := newBox("minf")
	b.writeBytes(vmhdBox())
	b.writeBytes(dinfBox())
	b.writeBytes(stblBox(entry))
	return b.encode()
}

func mdiaBox(durationTicks uint64, entry SampleEntry) []byte {
	b := newBox("mdia")
	b.writeBytes(mdhdBox(durationTicks))
	b.writeBytes(hdlrBox())
	b.writeBytes(minfBox(entry))
	return b.encode()
}

func trakBox(trackID uint32, durationTicks uint64, entry SampleEntry) []byte {
	b := newBox("trak")
	b.writeBytes(tkhdBox(trackID, durationTicks, entry.Width, entry.Height))
	b.writeBytes(mdiaBox(durationTicks, entry))
	return b.encode()
}

func mvexBox(trackID uint32) []byte {
	trex := newBox("trex")
	trex.writeFullHeader(0, 0)
	trex.writeU32(trackID)
	trex.writeU32(1)
	trex.writeU32(0)
	trex.writeU32(0)
	trex.writeU32(0)
	b := newBox("mvex")
	b.writeChild(trex)
	return b.encode()
}

func moovBox(durationTicks uint64, entry SampleEntry) []byte {
	const trackID = 1
	b := newBox("moov")
	b.writeBytes(mvhdBox(durationTicks, trackID+1))
	b.writeBytes(trakBox(trackID, durationTicks, entry))
	b.writeBytes(mvexBox(trackID))
	return b.encode()
}

// mfhdBox writes the movie fragment header naming this fragment's
// sequence number.
func mfhdBox(sequenceNumber uint32) []byte {
	b := newBox("mfhd")
	b.writeFullHeader(0, 0)
	b.writeU32(sequenceNumber)
	return b.encode()
}

const (
	tfFlagBaseDataOffsetPresent       = 0x000001
	tfFlagDefaultSampleDurationPresent = 0x000008
	tfFlagDefaultSampleFlagsPresent    = 0x000020
)

func tfhdBox(trackID uint32, baseDataOffset uint64) []byte {
	b := newBox("tfhd")
	b.writeFullHeader(0, tfFlagBaseDataOffsetPresent)
	b.writeU32(trackID)
	b.writeU64(baseDataOffset)
	return b.encode()
}

func tfdtBox(baseMediaDecodeTime uint64) []byte {
	b := newBox("tfdt")
	b.writeFullHeader(1, 0)
	b.writeU64(baseMediaDecodeTime)
	return b.encode()
}

const (
	trunFlagDataOffsetPresent        = 0x000001
	trunFlagSampleDurationPresent    = 0x000100
	trunFlagSampleSizePresent        = 0x000200
	trunFlagSampleFlagsPresent       = 0x000400
)

// trunBox writes the track fragment run table: one (duration, size,
// flags) triple per sample. dataOffset is patched in by the caller once
// the enclosing moof's total length is known.
func trunBox(samples []Sample, dataOffset int32) []byte {
	flags := uint32(trunFlagDataOffsetPresent | trunFlagSampleDurationPresent |
		trunFlagSampleSizePresent | trunFlagSampleFlagsPresent)
	b := newBox("trun")
	b.writeFullHeader(0, flags)
	b.writeU32(uint32(len(samples)))
	b.writeU32(uint32(dataOffset))
	for _, s := range samples {
		b.writeU32(uint32(s.DurationTicks))
		b.writeU32(uint32(s.Bytes))
		if s.IsKey {
			b.writeU32(0x02000000)
		} else {
			b.writeU32(0x01010000)
		}
	}
	return b.encode()
}

func trafBox(trackID uint32, baseMediaDecodeTime uint64, samples []Sample, dataOffset int32) []byte {
	b := newBox("traf")
	b.writeBytes(tfhdBox(trackID, 0))
	b.writeBytes(tfdtBox(baseMediaDecodeTime))
	b.writeBytes(trunBox(samples, dataOffset))
	return b.encode()
}

// moofBox assembles a full movie fragment box and returns its encoding.
// trun's data_offset is filled in here, not by the caller: the
// fragment's own length is fixed before mdat begins, so the offset is
// computed directly.
func moofBox(sequenceNumber uint32, trackID uint32, baseMediaDecodeTime uint64, samples []Sample) []byte {
	mfhd := mfhdBox(sequenceNumber)
	// moof header (8) + mfhd + traf; data_offset counts from the start
	// of moof to the start of mdat's payload (mdat header is 8 bytes).
	placeholderTraf := trafBox(trackID, baseMediaDecodeTime, samples, 0)
	moofLen := 8 + len(mfhd) + len(placeholderTraf)
	dataOffset := int32(moofLen + 8)
	traf := trafBox(trackID, baseMediaDecodeTime, samples, dataOffset)

	b := newBox("moof")
	b.writeBytes(mfhd)
	b.writeBytes(traf)
	return b.encode()
}

func mdatBox(payload []byte) []byte {
	b := newBox("mdat")
	b.writeBytes(payload)
	return b.encode()
}
