// Package restyutil dumps full HTTP transcripts of a resty client, mostly to capture a page
// after the portal changed its markup.
package restyutil

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/go-resty/resty/v2"
)

type InstrumentOutput interface {
	Write(id string, contents string)
}

type instrumentCtx struct {
	output    InstrumentOutput
	prefix    string
	idcounter *uint64
}

// InstrumentClient writes a transcript of every exchange of client to output. A nil output
// leaves the client untouched.
func InstrumentClient(client *resty.Client, output InstrumentOutput) {
	if output == nil {
		return
	}

	var idcounter uint64
	i := instrumentCtx{
		output:    output,
		prefix:    time.Now().Format("20060102-150405"),
		idcounter: &idcounter,
	}
	client.OnAfterResponse(i.onAfterResponse)
	client.OnError(i.onError)
}

func (i instrumentCtx) nextID() string {
	return fmt.Sprintf("%s-%04d", i.prefix, atomic.AddUint64(i.idcounter, 1))
}

func (i instrumentCtx) onAfterResponse(_ *resty.Client, res *resty.Response) error {
	i.output.Write(i.nextID(), formatTranscript(res))
	return nil
}

func (i instrumentCtx) onError(req *resty.Request, err error) {
	i.output.Write(i.nextID()+"-error", formatFailure(req, err))
}
