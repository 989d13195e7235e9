package detection

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Validate", func() {
	It("rejects empty images", func() {
		Expect(Validate(Image{ContentType: "image/png"})).To(MatchError(ErrEmptyImage))
	})

	It("accepts PNG and JPEG", func() {
		Expect(Validate(Image{Data: pngBytes(), ContentType: "image/png"})).To(Succeed())
		Expect(Validate(Image{Data: jpegBytes(), ContentType: "image/jpeg"})).To(Succeed())
	})

	It("sniffs the type when the header is missing", func() {
		img := Image{Data: jpegBytes()}
		Expect(DetectContentType(img)).To(Equal("image/jpeg"))
		Expect(Validate(img)).To(Succeed())
	})

	It("recognises HEIC brands", func() {
		data := append([]byte{0, 0, 0, 24}, []byte("ftypheic")...)
		data = append(data, make([]byte, 16)...)
		Expect(DetectContentType(Image{Data: data, ContentType: "application/octet-stream"})).To(Equal("image/heic"))
	})

	It("rejects other formats", func() {
		Expect(Validate(Image{Data: []byte("%PDF-1.7"), ContentType: "application/pdf"})).To(MatchError(ErrUnsupportedImage))
		Expect(Validate(Image{Data: []byte("GIF89a......"), ContentType: "image/gif"})).To(MatchError(ErrUnsupportedImage))
	})

	It("strips MIME parameters", func() {
		Expect(DetectContentType(Image{Data: pngBytes(), ContentType: "image/PNG; charset=binary"})).To(Equal("image/png"))
	})
})

var _ = Describe("toPNG", func() {
	It("keeps PNG untouched", func() {
		data := pngBytes()
		out, err := toPNG(Image{Data: data, ContentType: "image/png"})
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(Equal(data))
	})

	Context("with HEIC input", func() {
		var heicHeader []byte

		BeforeEach(func() {
			heicHeader = append([]byte{0, 0, 0, 24}, []byte("ftypheic")...)
			heicHeader = append(heicHeader, make([]byte, 16)...)
		})

		It("hands declared HEIC to the HEIC decoder", func() {
			_, err := toPNG(Image{Data: heicHeader, ContentType: "image/heic"})
			Expect(err).To(MatchError(ContainSubstring("decoding HEIC image")))
		})

		It("hands sniffed HEIC to the HEIC decoder", func() {
			_, err := toPNG(Image{Data: heicHeader})
			Expect(err).To(MatchError(ContainSubstring("decoding HEIC image")))
		})

		It("follows the bytes when the header claims JPEG", func() {
			_, err := toPNG(Image{Data: heicHeader, ContentType: "image/jpeg"})
			Expect(err).To(MatchError(ContainSubstring("decoding HEIC image")))
		})
	})

	It("re-encodes JPEG", func() {
		out, err := toPNG(Image{Data: jpegBytes(), ContentType: "image/jpeg"})
		Expect(err).NotTo(HaveOccurred())
		Expect(DetectContentType(Image{Data: out})).To(Equal("image/png"))
	})
})
