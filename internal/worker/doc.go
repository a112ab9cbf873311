// Package worker runs the dlib and OpenFace models in a separate process and
// talks to it over pipes.
//
// # Invocation
//
// The worker is started as
//
//	python3 -u models/worker/model_worker.py --predictor <dlib .dat> --network <nn4 .t7> --img-dim 96
//
// with python3 taken from the worker.python config key. It must load both
// models before reading its first request. Anything it prints to stderr is
// captured and shown when the process fails.
//
// # Framing
//
// Requests arrive on stdin. Responses go to file descriptor 3, never stdout.
// Every message in both directions is a frame:
//
//	[uint32 length, big endian][length bytes]
//
// A request frame holds one opcode byte followed by the op's body. Exactly one
// response frame answers each request, in order. The worker exits when stdin
// reaches EOF.
//
// A response starts with a status byte. Status 0 is followed by the op's
// result. Status 1 is followed by [uint32 length][UTF-8 message] and fails
// only that request. All integers and floats are big endian; floats are
// IEEE 754 float32.
//
// # Operations
//
// 'D' detects faces. The body is a PNG image. The result is
//
//	[uint32 n] n × ([int32 x][int32 y][int32 w][int32 h][float32 score])
//
// in pixel coordinates of the image, in detector order.
//
// 'L' predicts landmarks. The body is [int32 x][int32 y][int32 w][int32 h]
// for the face box followed by a PNG image. The result is
//
//	[uint32 n] n × ([float32 x][float32 y])
//
// with n = 68 in iBUG order. An empty set (n = 0) means no landmarks were found.
//
// 'E' embeds a canonical face. The body is [uint32 size] followed by
// size × size × 3 bytes of row-major RGB. The result is
//
//	[uint32 n] n × [float32]
//
// where n is the network's embedding width, 128 for nn4.small2.
package worker
