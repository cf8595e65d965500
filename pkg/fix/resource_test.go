package fix_test

import (
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"
	"gotest.tools/assert"

	"gitlab.heather.loc/helios/fix/pkg/fix"
)

const testOverrideSchema = `<fix type="FIX" major="4" minor="4">
  <header>
    <field name="BeginString" required="Y"/>
    <field name="BodyLength" required="Y"/>
    <field name="MsgType" required="Y"/>
  </header>
  <trailer>
    <field name="CheckSum" required="Y"/>
  </trailer>
  <messages>
    <message name="Note" msgtype="B" msgcat="app">
      <field name="Text" required="Y"/>
    </message>
  </messages>
  <components/>
  <fields>
    <field number="8" name="BeginString" type="STRING"/>
    <field number="9" name="BodyLength" type="LENGTH"/>
    <field number="10" name="CheckSum" type="STRING"/>
    <field number="35" name="MsgType" type="STRING"/>
    <field number="58" name="Text" type="STRING"/>
  </fields>
</fix>`

func TestLoadProtocolBundled(t *testing.T) {
	p, err := fix.LoadProtocol(zap.NewNop(), "fix44")
	assert.NilError(t, err)
	assert.Equal(t, p.ID(), "FIX.4.4")

	_, ok := p.MessageByName("NewOrderSingle")
	assert.Check(t, ok)
}

func TestLoadProtocolUnknownVersion(t *testing.T) {
	_, err := fix.LoadProtocol(zap.NewNop(), "fix30")
	assert.Equal(t, fix.KindOf(err), fix.ErrKindUnsupportedVersion)
}

func TestLoadProtocolEnvOverride(t *testing.T) {
	dir := t.TempDir()
	assert.NilError(t, os.WriteFile(filepath.Join(dir, "FIX44.xml"), []byte(testOverrideSchema), 0o600))
	t.Setenv(fix.SchemaDirEnv, dir)

	p, err := fix.LoadProtocol(zap.NewNop(), "fix44")
	assert.NilError(t, err)

	_, ok := p.MessageByName("Note")
	assert.Check(t, ok, "override schema used")
	_, ok = p.MessageByName("Logon")
	assert.Check(t, !ok, "bundled schema ignored")

	_, err = fix.LoadProtocol(zap.NewNop(), "fix50")
	assert.ErrorContains(t, err, "fail read schema override")
}
