// Package security implements the PDF standard security handler:
// RC4-40/128 and AES-128/256 (revisions 2-5; revision 6 password hashing is
// not implemented, see newHandlerR6), per-object key derivation,
// owner/user password validation, and stream/string decryption.
//
// code adapted from the teacher's reader/file/encryption.go, which is
// retrieved in a work-in-progress state (empty method bodies, an undefined
// "ctx" reference, dead TODO stubs for string decryption, and an off-by-one
// slice index in its Crypt-filter bypass check) — the key-derivation and
// AES/RC4 formulas are grounded on it; the control flow, the password
// validators' callable form, and the string-decryption bodies it left as
// stubs are written fresh here.
package security

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/md5"
	"crypto/rand"
	"crypto/rc4"
	"crypto/sha256"
	"errors"
	"fmt"

	"github.com/msonnier/pdfcore/model"
)

// padding is the 32-byte password padding string from PDF 7.6.3.3 (Algorithm 2).
var padding = []byte{
	0x28, 0xBF, 0x4E, 0x5E, 0x4E, 0x75, 0x8A, 0x41,
	0x64, 0x00, 0x4E, 0x56, 0xFF, 0xFA, 0x01, 0x08,
	0x2E, 0x2E, 0x00, 0xB6, 0xD0, 0x68, 0x3E, 0x80,
	0x2F, 0x0C, 0xA9, 0xFE, 0x64, 0x53, 0x69, 0x7A,
}

// Handler holds everything needed to derive per-object keys and decrypt
// strings/streams for one opened document.
type Handler struct {
	R             int
	O, U          []byte
	OE, UE        []byte
	P             int32
	ID0           []byte
	FileKey       []byte
	AES           bool
	EncryptMeta   bool
	// StrF/StmF identity ("Identity") disables encryption for that class.
	StringsPlain  bool
	StreamsPlain  bool
}

// Dict holds the parsed contents of a PDF /Encrypt dictionary, independent
// of which password (if any) has since been validated.
type Dict struct {
	Filter      model.Name
	V           int
	R           int
	Length      int // key length in bits
	O, U        []byte
	OE, UE      []byte
	P           int32
	ID0         []byte
	EncryptMeta bool
	AES         bool
	StrIdentity bool
	StmIdentity bool
}

// padOrTruncate returns pw padded/truncated to 32 bytes per Algorithm 2 step (a).
func padOrTruncate(pw []byte) []byte {
	out := make([]byte, 32)
	n := copy(out, pw)
	copy(out[n:], padding)
	return out
}

func clampKeyLen(n int) int {
	if n < 5 {
		return 5
	}
	if n > 16 {
		return 16
	}
	return n
}

// NewHandler validates a password (owner or user; "" means "try empty
// user password") against d and, on success, returns a Handler carrying
// the derived file encryption key.
func NewHandler(d Dict, password string) (*Handler, error) {
	if d.R >= 5 {
		return newHandlerR6(d, password)
	}
	return newHandlerLegacy(d, password)
}

// newHandlerLegacy implements Algorithm 2 (compute an encryption key) and
// Algorithm 6/7 (authenticate user/owner password) for R2-R4.
func newHandlerLegacy(d Dict, password string) (*Handler, error) {
	if key, ok := deriveAndCheckUserKey(d, []byte(password)); ok {
		return legacyHandler(d, key), nil
	}

	// Try treating password as the owner password: recover the user
	// password per Algorithm 7, then validate it directly. No further
	// recursion here: a wrong owner password must fail, not loop, since
	// recoverUserPassword always produces *some* candidate bytes whether
	// or not password was actually correct.
	recoveredUserPW, err := recoverUserPassword(d, password)
	if err != nil {
		return nil, errors.New("security: incorrect password")
	}
	if key, ok := deriveAndCheckUserKey(d, recoveredUserPW); ok {
		return legacyHandler(d, key), nil
	}
	return nil, errors.New("security: incorrect password")
}

// deriveAndCheckUserKey runs Algorithm 2 over rawPassword and reports
// whether the resulting key reproduces /U per Algorithm 6.
func deriveAndCheckUserKey(d Dict, rawPassword []byte) (key []byte, ok bool) {
	pw := padOrTruncate(rawPassword)
	keyLen := clampKeyLen(d.Length / 8)
	if d.Length == 0 {
		keyLen = 5
	}

	h := md5.New()
	h.Write(pw)
	h.Write(d.O)
	var pBytes [4]byte
	pBytes[0] = byte(d.P)
	pBytes[1] = byte(d.P >> 8)
	pBytes[2] = byte(d.P >> 16)
	pBytes[3] = byte(d.P >> 24)
	h.Write(pBytes[:])
	h.Write(d.ID0)
	if d.R >= 4 && !d.EncryptMeta {
		h.Write([]byte{0xff, 0xff, 0xff, 0xff})
	}
	sum := h.Sum(nil)

	key = sum[:keyLen]
	if d.R >= 3 {
		for i := 0; i < 50; i++ {
			s := md5.Sum(key)
			key = s[:keyLen]
		}
	}

	candidate := computeUserPasswordValue(key, d.R, d.ID0)
	return key, matchesUserValue(candidate, d.U, d.R)
}

func legacyHandler(d Dict, key []byte) *Handler {
	return &Handler{
		R: d.R, O: d.O, U: d.U, P: d.P, ID0: d.ID0,
		FileKey: key, AES: d.AES, EncryptMeta: d.EncryptMeta,
		StringsPlain: d.StrIdentity, StreamsPlain: d.StmIdentity,
	}
}

func computeUserPasswordValue(key []byte, r int, id0 []byte) []byte {
	if r == 2 {
		out := make([]byte, 32)
		copy(out, padding)
		rc4XOR(key, out)
		return out
	}
	h := md5.New()
	h.Write(padding)
	h.Write(id0)
	sum := h.Sum(nil)
	rc4XOR(key, sum)
	for i := 1; i <= 19; i++ {
		rc4XORWithRoundKey(key, sum, i)
	}
	return append(sum, make([]byte, 16)...) // compare only first 16 bytes for R>=3
}

func matchesUserValue(candidate, u []byte, r int) bool {
	n := 32
	if r >= 3 {
		n = 16
	}
	if len(candidate) < n || len(u) < n {
		return false
	}
	return bytes.Equal(candidate[:n], u[:n])
}

// recoverUserPassword implements Algorithm 7: derive the owner-password
// based RC4 key (Algorithm 3 steps), then peel off up to 20 RC4 rounds
// (R>=3) or one (R2) to recover the padded user password.
func recoverUserPassword(d Dict, ownerPassword string) ([]byte, error) {
	pw := padOrTruncate([]byte(ownerPassword))
	keyLen := clampKeyLen(d.Length / 8)
	if d.Length == 0 {
		keyLen = 5
	}
	h := md5.New()
	h.Write(pw)
	sum := h.Sum(nil)
	if d.R >= 3 {
		for i := 0; i < 50; i++ {
			s := md5.Sum(sum)
			sum = s[:]
		}
	}
	rc4key := sum[:keyLen]

	out := append([]byte(nil), d.O...)
	if d.R == 2 {
		rc4XOR(rc4key, out)
	} else {
		for i := 19; i >= 0; i-- {
			round := make([]byte, len(rc4key))
			for j := range rc4key {
				round[j] = rc4key[j] ^ byte(i)
			}
			rc4XOR(round, out)
		}
	}
	return out, nil
}

func rc4XOR(key, data []byte) {
	c, err := rc4.NewCipher(key)
	if err != nil {
		return
	}
	c.XORKeyStream(data, data)
}

func rc4XORWithRoundKey(key, data []byte, round int) {
	roundKey := make([]byte, len(key))
	for j := range key {
		roundKey[j] = key[j] ^ byte(round)
	}
	rc4XOR(roundKey, data)
}

// --- R5/R6 (AES-256) -------------------------------------------------

func validationSalt(bb []byte) []byte { return bb[32:40] }
func keySalt(bb []byte) []byte        { return bb[40:48] }

// newHandlerR6 validates an AES-256 password and recovers the file key for
// R>=5 using a single SHA-256 hash of password+salt(+U), the revision 5
// scheme. The iterated SHA-256/384/512 hash of revision 6 is not
// implemented, so revision 6 passwords do not validate here.
func newHandlerR6(d Dict, password string) (*Handler, error) {
	pwBytes := []byte(password)
	if len(pwBytes) > 127 {
		pwBytes = pwBytes[:127]
	}

	// Try user password first.
	if len(d.U) >= 48 {
		vSalt := validationSalt(d.U)
		sum := sha256.Sum256(append(append([]byte(nil), pwBytes...), vSalt...))
		if bytes.Equal(sum[:], d.U[:32]) {
			kSalt := keySalt(d.U)
			ik := sha256.Sum256(append(append([]byte(nil), pwBytes...), kSalt...))
			fileKey, err := aesCBCNoIVNoPad(ik[:], d.UE)
			if err != nil {
				return nil, err
			}
			return &Handler{R: d.R, O: d.O, U: d.U, OE: d.OE, UE: d.UE, P: d.P, ID0: d.ID0,
				FileKey: fileKey, AES: true, EncryptMeta: d.EncryptMeta,
				StringsPlain: d.StrIdentity, StreamsPlain: d.StmIdentity}, nil
		}
	}

	// Try owner password: validation hash additionally covers U (48 bytes).
	if len(d.O) >= 48 {
		vSalt := validationSalt(d.O)
		input := append(append([]byte(nil), pwBytes...), vSalt...)
		input = append(input, d.U[:min(48, len(d.U))]...)
		sum := sha256.Sum256(input)
		if bytes.Equal(sum[:], d.O[:32]) {
			kSalt := keySalt(d.O)
			ikInput := append(append([]byte(nil), pwBytes...), kSalt...)
			ikInput = append(ikInput, d.U[:min(48, len(d.U))]...)
			ik := sha256.Sum256(ikInput)
			fileKey, err := aesCBCNoIVNoPad(ik[:], d.OE)
			if err != nil {
				return nil, err
			}
			return &Handler{R: d.R, O: d.O, U: d.U, OE: d.OE, UE: d.UE, P: d.P, ID0: d.ID0,
				FileKey: fileKey, AES: true, EncryptMeta: d.EncryptMeta,
				StringsPlain: d.StrIdentity, StreamsPlain: d.StmIdentity}, nil
		}
	}
	return nil, errors.New("security: incorrect password")
}

func aesCBCNoIVNoPad(key, ciphertext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	if len(ciphertext)%aes.BlockSize != 0 || len(ciphertext) == 0 {
		return nil, fmt.Errorf("security: invalid AES-256 key-encryption payload length %d", len(ciphertext))
	}
	iv := make([]byte, aes.BlockSize)
	out := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(out, ciphertext)
	return out, nil
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// --- per-object key derivation and payload crypt ----------------------

// ObjectKey derives the per-object encryption key per PDF 7.6.2, Algorithm 1:
// append the 3-byte little-endian object number and 2-byte little-endian
// generation to the file key (plus the literal "sAlT" bytes for AES),
// MD5-hash, and truncate to min(len(fileKey)+5, 16) bytes.
func (h *Handler) ObjectKey(num uint32, gen uint16) []byte {
	if h.R >= 5 {
		return h.FileKey // AES-256: the file key is used directly, no per-object derivation
	}
	buf := append([]byte(nil), h.FileKey...)
	buf = append(buf, byte(num), byte(num>>8), byte(num>>16), byte(gen), byte(gen>>8))
	if h.AES {
		buf = append(buf, 's', 'A', 'l', 'T')
	}
	sum := md5.Sum(buf)
	n := len(h.FileKey) + 5
	if n > 16 {
		n = 16
	}
	return sum[:n]
}

// DecryptStream decrypts a stream's raw bytes with ref's per-object key.
func (h *Handler) DecryptStream(raw []byte, ref model.Reference) ([]byte, error) {
	if h.StreamsPlain {
		return raw, nil
	}
	return h.decrypt(raw, ref)
}

// DecryptString decrypts a string literal/hex value's raw bytes.
func (h *Handler) DecryptString(raw []byte, ref model.Reference) ([]byte, error) {
	if h.StringsPlain {
		return raw, nil
	}
	return h.decrypt(raw, ref)
}

func (h *Handler) decrypt(raw []byte, ref model.Reference) ([]byte, error) {
	key := h.ObjectKey(ref.Num, ref.Gen)
	if h.AES {
		return decryptAES(raw, key)
	}
	out := append([]byte(nil), raw...)
	c, err := rc4.NewCipher(key)
	if err != nil {
		return nil, err
	}
	c.XORKeyStream(out, out)
	return out, nil
}

// decryptAES treats the first block of b as the CBC IV, decrypts the rest,
// then strips PKCS#7-style padding leniently: some writers omit it, so a
// trailing byte greater than the block size is left untouched rather than
// treated as an error.
func decryptAES(b, key []byte) ([]byte, error) {
	if len(b) == 0 {
		return nil, nil
	}
	if len(b)%aes.BlockSize != 0 || len(b) < aes.BlockSize {
		return nil, fmt.Errorf("security: ciphertext length %d is not a positive multiple of the AES block size", len(b))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	iv := b[:aes.BlockSize]
	rest := append([]byte(nil), b[aes.BlockSize:]...)
	if len(rest) == 0 {
		return nil, nil
	}
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(rest, rest)
	if n := int(rest[len(rest)-1]); n > 0 && n <= aes.BlockSize && n <= len(rest) {
		rest = rest[:len(rest)-n]
	}
	return rest, nil
}

// EncryptBytes is the write-side counterpart of decrypt: used by the
// serializer to encrypt a (new or modified) object's string/stream payload
// before it is written out. RC4 is its own inverse (a stream cipher XOR),
// so the RC4 path is literally decrypt's code path again; AES-CBC is not
// symmetric, so this generates a fresh random IV and PKCS#7-pads before
// encrypting, mirroring decryptAES's IV-prefix convention in reverse.
func (h *Handler) EncryptBytes(plain []byte, ref model.Reference) ([]byte, error) {
	key := h.ObjectKey(ref.Num, ref.Gen)
	if !h.AES {
		out := append([]byte(nil), plain...)
		c, err := rc4.NewCipher(key)
		if err != nil {
			return nil, err
		}
		c.XORKeyStream(out, out)
		return out, nil
	}
	return encryptAES(plain, key)
}

func encryptAES(plain, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	pad := aes.BlockSize - len(plain)%aes.BlockSize
	padded := append(append([]byte(nil), plain...), bytesRepeat(byte(pad), pad)...)
	iv := make([]byte, aes.BlockSize)
	if _, err := rand.Read(iv); err != nil {
		return nil, err
	}
	out := make([]byte, aes.BlockSize+len(padded))
	copy(out, iv)
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out[aes.BlockSize:], padded)
	return out, nil
}

func bytesRepeat(b byte, n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = b
	}
	return out
}

// EncryptString is the write-side counterpart of DecryptString.
func (h *Handler) EncryptString(plain []byte, ref model.Reference) ([]byte, error) {
	if h.StringsPlain {
		return plain, nil
	}
	return h.EncryptBytes(plain, ref)
}

// EncryptStream is the write-side counterpart of DecryptStream.
func (h *Handler) EncryptStream(plain []byte, ref model.Reference) ([]byte, error) {
	if h.StreamsPlain {
		return plain, nil
	}
	return h.EncryptBytes(plain, ref)
}

// EncryptValue walks v encrypting every String leaf at ref's object, the
// write-side mirror of DecryptValue.
func (h *Handler) EncryptValue(v model.Value, ref model.Reference) (model.Value, error) {
	switch v.Kind() {
	case model.KindString:
		enc, err := h.EncryptString([]byte(v.AsString()), ref)
		if err != nil {
			return model.Value{}, err
		}
		if v.StringForm() == model.Hex {
			return model.StringHex(string(enc)), nil
		}
		return model.StringLiteral(string(enc)), nil
	case model.KindArray:
		items := v.AsArray()
		out := make([]model.Value, len(items))
		for i, e := range items {
			ev, err := h.EncryptValue(e, ref)
			if err != nil {
				return model.Value{}, err
			}
			out[i] = ev
		}
		return model.ArrayV(out...), nil
	case model.KindDict:
		src := v.AsDict()
		out := model.NewDict()
		for _, k := range src.Keys() {
			e, _ := src.Get(k)
			ev, err := h.EncryptValue(e, ref)
			if err != nil {
				return model.Value{}, err
			}
			out.Set(k, ev)
		}
		return model.DictV(out), nil
	default:
		return v, nil
	}
}

// DecryptValue walks v, decrypting every String leaf found at ref's object
// (Dict/Array/Stream are recursed into; Stream payloads are decrypted
// separately via DecryptStream since they may use a distinct crypt filter).
func (h *Handler) DecryptValue(v model.Value, ref model.Reference) (model.Value, error) {
	switch v.Kind() {
	case model.KindString:
		dec, err := h.DecryptString([]byte(v.AsString()), ref)
		if err != nil {
			return model.Value{}, err
		}
		if v.StringForm() == model.Hex {
			return model.StringHex(string(dec)), nil
		}
		return model.StringLiteral(string(dec)), nil
	case model.KindArray:
		items := v.AsArray()
		out := make([]model.Value, len(items))
		for i, e := range items {
			dv, err := h.DecryptValue(e, ref)
			if err != nil {
				return model.Value{}, err
			}
			out[i] = dv
		}
		return model.ArrayV(out...), nil
	case model.KindDict:
		src := v.AsDict()
		out := model.NewDict()
		for _, k := range src.Keys() {
			e, _ := src.Get(k)
			dv, err := h.DecryptValue(e, ref)
			if err != nil {
				return model.Value{}, err
			}
			out.Set(k, dv)
		}
		return model.DictV(out), nil
	default:
		return v, nil
	}
}
