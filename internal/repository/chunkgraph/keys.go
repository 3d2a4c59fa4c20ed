package chunkgraph

// Key layout under the configured prefix:
//
//	<p>chunk:<id>          hash, chunk fields plus the vector blob (indexed)
//	<p>edges:<id>          hash, "<dir>|<relation>|<peer>" -> overlap tokens
//	<p>doc:<id>            hash, document metadata
//	<p>doc:<id>:chunks     set of chunk ids
type keys struct{ prefix string }

func (k keys) chunkPrefix() string        { return k.prefix + "chunk:" }
func (k keys) chunk(id string) string     { return k.prefix + "chunk:" + id }
func (k keys) edges(id string) string     { return k.prefix + "edges:" + id }
func (k keys) doc(id string) string       { return k.prefix + "doc:" + id }
func (k keys) docChunks(id string) string { return k.prefix + "doc:" + id + ":chunks" }
func (k keys) index() string              { return k.prefix + "chunks_idx" }

func (k keys) chunkID(key string) string {
	p := k.chunkPrefix()
	if len(key) > len(p) && key[:len(p)] == p {
		return key[len(p):]
	}
	return key
}
