package memory

import "lichsu-rewards-service/internal/domain"

// DemoQuizzes is the built-in Vietnamese history content served when no database is configured.
// The Postgres seed migration inserts the same quizzes.
func DemoQuizzes() map[string]domain.Quiz {
	return map[string]domain.Quiz{
		"demo-1": {
			ID:    "demo-1",
			Title: "Các cuộc kháng chiến chống ngoại xâm",
			Questions: []domain.Question{
				{
					ID:      "q1",
					Prompt:  "Ngô Quyền đánh tan quân Nam Hán trên sông Bạch Đằng vào năm nào?",
					Options: []string{"938", "981", "1288", "1077"},
					Correct: 0,
				},
				{
					ID:      "q2",
					Prompt:  "Ai là tác giả bài thơ \"Nam quốc sơn hà\" gắn với trận chiến trên sông Như Nguyệt?",
					Options: []string{"Trần Hưng Đạo", "Lý Thường Kiệt", "Lê Lợi", "Nguyễn Trãi"},
					Correct: 1,
				},
				{
					ID:      "q3",
					Prompt:  "Nhà Trần đã mấy lần kháng chiến thắng lợi chống quân Mông - Nguyên?",
					Options: []string{"Một lần", "Hai lần", "Ba lần", "Bốn lần"},
					Correct: 2,
				},
				{
					ID:      "q4",
					Prompt:  "Vua Quang Trung đại phá quân Thanh vào dịp Tết năm nào?",
					Options: []string{"1771", "1785", "1789", "1802"},
					Correct: 2,
				},
				{
					ID:      "q5",
					Prompt:  "Chiến dịch Điện Biên Phủ kết thúc thắng lợi vào ngày nào?",
					Options: []string{"7/5/1954", "2/9/1945", "30/4/1975", "19/12/1946"},
					Correct: 0,
				},
			},
		},
		"demo-2": {
			ID:    "demo-2",
			Title: "Kinh đô và triều đại",
			Questions: []domain.Question{
				{
					ID:      "q1",
					Prompt:  "Năm 1010, vua Lý Thái Tổ dời đô từ Hoa Lư về đâu?",
					Options: []string{"Phú Xuân", "Thăng Long", "Cổ Loa", "Tây Đô"},
					Correct: 1,
				},
				{
					ID:      "q2",
					Prompt:  "Kinh đô của nhà Nguyễn đặt ở đâu?",
					Options: []string{"Huế", "Hà Nội", "Thanh Hóa", "Gia Định"},
					Correct: 0,
				},
				{
					ID:      "q3",
					Prompt:  "Thành Cổ Loa gắn với triều đại của ai?",
					Options: []string{"Hùng Vương", "An Dương Vương", "Triệu Đà", "Đinh Bộ Lĩnh"},
					Correct: 1,
				},
			},
		},
	}
}
