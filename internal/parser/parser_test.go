package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/mbrgrep/internal/searchtypes"
)

const pgm1 = "/QSYS.LIB/ACME.LIB/QRPGLESRC.FILE/PGM1.MBR"

func TestParseMatchAndContext(t *testing.T) {
	out := pgm1 + ":10:DCL-S X;\n--\n" + pgm1 + "-11-  X = 1;"

	hits := Parse(out)
	require.Len(t, hits, 1)
	h := hits[0]
	assert.Equal(t, pgm1, h.ResourcePath)
	assert.Equal(t, "ACME/QRPGLESRC/PGM1", h.Label)
	assert.Equal(t, []searchtypes.HitLine{
		{LineNumber: 10, Content: "DCL-S X;"},
		{LineNumber: 11, Content: "  X = 1;", IsContext: true},
	}, h.Lines)
}

func TestParseFirstSeenOrder(t *testing.T) {
	out := "" +
		"/QSYS.LIB/BETA.LIB/QCLSRC.FILE/START.MBR:3:CALL PGM1\n" +
		pgm1 + ":10:CALLP START;\n" +
		"/QSYS.LIB/BETA.LIB/QCLSRC.FILE/START.MBR:9:CALL PGM2\n"

	hits := Parse(out)
	require.Len(t, hits, 2)
	assert.Equal(t, "/QSYS.LIB/BETA.LIB/QCLSRC.FILE/START.MBR", hits[0].ResourcePath)
	assert.Equal(t, pgm1, hits[1].ResourcePath)
	assert.Len(t, hits[0].Lines, 2)
}

func TestParseContentWithSeparators(t *testing.T) {
	out := pgm1 + ":42:   EVAL X = A-1-2 : B;\n" +
		pgm1 + "-43-  // 12:30:00 note\n"

	hits := Parse(out)
	require.Len(t, hits, 1)
	require.Len(t, hits[0].Lines, 2)
	assert.Equal(t, "   EVAL X = A-1-2 : B;", hits[0].Lines[0].Content)
	assert.False(t, hits[0].Lines[0].IsContext)
	assert.Equal(t, "  // 12:30:00 note", hits[0].Lines[1].Content)
	assert.True(t, hits[0].Lines[1].IsContext)
}

func TestParseContextLineQuotingAnotherMember(t *testing.T) {
	out := "/QSYS.LIB/A.LIB/F.FILE/P.MBR:10:CALL X\n" +
		"/QSYS.LIB/A.LIB/F.FILE/P.MBR-11-  CPY Q.MBR:3:Z\n" +
		"/QSYS.LIB/A.LIB/F.FILE/P.MBR:12:  REF R.MBR-4-W\n"

	hits := Parse(out)
	require.Len(t, hits, 1)
	assert.Equal(t, "/QSYS.LIB/A.LIB/F.FILE/P.MBR", hits[0].ResourcePath)
	assert.Equal(t, []searchtypes.HitLine{
		{LineNumber: 10, Content: "CALL X"},
		{LineNumber: 11, Content: "  CPY Q.MBR:3:Z", IsContext: true},
		{LineNumber: 12, Content: "  REF R.MBR-4-W"},
	}, hits[0].Lines)
}

func TestParseContextBeforeMatchCreatesHit(t *testing.T) {
	hits := Parse(pgm1 + "-5-  context only\n")
	require.Len(t, hits, 1)
	require.Len(t, hits[0].Lines, 1)
	assert.True(t, hits[0].Lines[0].IsContext)
}

func TestParseIgnoresMalformedLines(t *testing.T) {
	out := "grep: warning: recursive search of stdin\n" +
		"\n" +
		"--\n" +
		"Binary file /QSYS.LIB/ACME.LIB/OBJ.FILE matches\n" +
		pgm1 + ":notanumber:x\n" +
		pgm1 + ":0:zero is not a line\n" +
		pgm1 + ":7:kept\r\n"

	hits := Parse(out)
	require.Len(t, hits, 1)
	assert.Equal(t, []searchtypes.HitLine{{LineNumber: 7, Content: "kept"}}, hits[0].Lines)
}

func TestParseLowerCasePathAndStreamFiles(t *testing.T) {
	out := "/qsys.lib/acme.lib/qrpglesrc.file/pgm1.mbr:1:x\n" +
		"/home/dev/src/pgm1.rpgle:2:y\n" +
		"/home/dev/src/pgm1.rpgle-3-z\n"

	hits := Parse(out)
	require.Len(t, hits, 2)
	assert.Equal(t, "/qsys.lib/acme.lib/qrpglesrc.file/pgm1.mbr", hits[0].ResourcePath)
	assert.Equal(t, "ACME/QRPGLESRC/PGM1", hits[0].Label)
	assert.Equal(t, "/home/dev/src/pgm1.rpgle", hits[1].ResourcePath)
	require.Len(t, hits[1].Lines, 2)
	assert.True(t, hits[1].Lines[1].IsContext)
}

func TestParseEmpty(t *testing.T) {
	assert.Empty(t, Parse(""))
	assert.Empty(t, Parse("--\n--\n"))
}

func TestParseLine(t *testing.T) {
	path, line, ok := ParseLine(pgm1 + ":10:DCL-S X;")
	require.True(t, ok)
	assert.Equal(t, pgm1, path)
	assert.Equal(t, 10, line.LineNumber)

	_, _, ok = ParseLine("no separators here")
	assert.False(t, ok)
}
