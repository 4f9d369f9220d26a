// Package stream turns a chunked response body into an ordered, lazy
// sequence of decoded events.
//
// Network chunks never line up with records. [LineBuffer] keeps the
// trailing partial line of every chunk until the rest of it arrives, and
// flushes an unterminated last line when the body ends. A [Decoder] turns
// each complete line into a [DecodedEvent]: JSON mode skips lines that are
// not valid JSON (keep-alive blanks, framing artifacts) instead of failing
// the whole stream, text mode yields lines verbatim.
//
// [Stream] is the pull iterator over a response body:
//
//	for event, err := range s.Iter() {
//	    if err != nil {
//	        return err
//	    }
//	    fmt.Println(string(event.Value))
//	}
//
// Breaking out of the loop closes the body and releases the connection. A
// stream is single-consumer and cannot be restarted.
package stream
