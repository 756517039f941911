package isolate

import "strings"

// streamPrefix must never be produced by a normal log line (spec.md §9
// "Stream demux").
const streamPrefix = "WM_STREAM: "

// demux splits a raw log line into (userLog, streamChunk, isStream).
// Stream chunks have their embedded newlines escaped by the entry script
// before logging, so demux unescapes them back before returning.
func demux(line string) (userLog string, streamChunk string, isStream bool) {
	if rest, ok := strings.CutPrefix(line, streamPrefix); ok {
		return "", strings.ReplaceAll(rest, `\n`, "\n"), true
	}
	return line, "", false
}

// streamCollector accumulates demultiplexed stream chunks and user logs
// from the isolate's log channel, tracking whether any stream content was
// ever produced (spec.md §4.6 "first stream chunk triggers a notifier").
type streamCollector struct {
	userLogs     strings.Builder
	streamOutput strings.Builder
	sawStream    bool
	onFirstChunk func()
}

func (c *streamCollector) Feed(line string) {
	userLog, chunk, isStream := demux(line)
	if isStream {
		if !c.sawStream && c.onFirstChunk != nil {
			c.onFirstChunk()
		}
		c.sawStream = true
		c.streamOutput.WriteString(chunk)
		c.streamOutput.WriteByte('\n')
		return
	}

	c.userLogs.WriteString(userLog)
	c.userLogs.WriteByte('\n')
}

func (c *streamCollector) Logs() string {
	return c.userLogs.String()
}

// MergedResult implements spec.md §4.6's merge rule: if the script's
// returned JSON is null but a stream produced content, the stream content
// becomes the result.
func (c *streamCollector) MergedResult(rawResult string) (result string, hadResultStream bool) {
	if !c.sawStream {
		return rawResult, false
	}
	if rawResult == "null" || rawResult == "" {
		return c.streamOutput.String(), true
	}
	return rawResult, true
}
