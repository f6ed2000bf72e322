package entity

// Image изображение, выбранное пользователем или снятое с камеры
type Image struct {
	Filename    string // исходное имя файла
	ContentType string // MIME-тип, определённый по содержимому
	Data        []byte // байты изображения
}

// Size возвращает размер изображения в байтах
func (i *Image) Size() int {
	if i == nil {
		return 0
	}
	return len(i.Data)
}
