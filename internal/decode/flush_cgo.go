package decode

//#cgo pkg-config: libavcodec
//#include <libavcodec/avcodec.h>
import "C"

import "github.com/asticode/go-astiav"

// flushBuffers invokes avcodec_flush_buffers on the decoder. go-astiav does
// not bind this libavcodec call, so it is reached through the context's
// unsafe pointer.
func flushBuffers(cc *astiav.CodecContext) {
	C.avcodec_flush_buffers((*C.AVCodecContext)(cc.UnsafePointer()))
}
